// Command oauth-init runs the OAuth consent flow once and stores the token
// the Sheets ledger uses when no service account is configured.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"picocompta/internal/cli"
	"picocompta/internal/config"
)

const authTimeout = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	logger := cli.SetupLogger("info", "text", "oauth-init")
	if err != nil {
		cli.Fatal(logger, "Failed to load configuration", err)
	}

	b, err := clientCredentials(cfg)
	if err != nil {
		cli.Fatal(logger, "Missing OAuth client", err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		cli.Fatal(logger, "Invalid OAuth client", err)
	}

	// The redirect URI must be registered on the OAuth client.
	port := strconv.Itoa(cfg.OAuthRedirectPort)
	oauthCfg.RedirectURL = "http://localhost:" + port + "/callback"

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if errStr := r.URL.Query().Get("error"); errStr != "" {
			http.Error(w, "Erreur OAuth : "+errStr, http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Autorisation reçue, vous pouvez fermer cette fenêtre.")
		select {
		case codeCh <- r.URL.Query().Get("code"):
		default:
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cli.Fatal(logger, "Callback server failed", err, "port", port)
		}
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", oauthCfg.AuthCodeURL("picocompta", oauth2.AccessTypeOffline))

	ctx, done := cli.GracefulShutdown(logger.Logger, 5*time.Second, func(ctx context.Context) {
		_ = srv.Shutdown(ctx)
	})
	timeout, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	select {
	case code := <-codeCh:
		tok, err := oauthCfg.Exchange(timeout, code)
		if err != nil {
			cli.Fatal(logger, "Token exchange failed", err)
		}
		if err := saveToken(cfg.GoogleOAuthTokenFile, tok); err != nil {
			cli.Fatal(logger, "Failed to save token", err, "path", cfg.GoogleOAuthTokenFile)
		}
		logger.Info("Saved OAuth token", "path", cfg.GoogleOAuthTokenFile)
		_ = srv.Shutdown(context.Background())
	case <-timeout.Done():
		if ctx.Err() != nil {
			<-done
			os.Exit(1)
		}
		cli.Fatal(logger, "Authorization timed out", timeout.Err())
	}
}

func clientCredentials(cfg *config.Config) ([]byte, error) {
	switch {
	case cfg.GoogleOAuthClientJSON != "":
		return []byte(cfg.GoogleOAuthClientJSON), nil
	case cfg.GoogleOAuthClientFile != "":
		return os.ReadFile(cfg.GoogleOAuthClientFile)
	}
	return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}

func saveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
