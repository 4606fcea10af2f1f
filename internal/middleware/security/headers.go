// Package security sets response hardening headers and flags hostile
// looking requests.
package security

import (
	"fmt"
	"net/http"

	"github.com/unrolled/secure"
)

type HeadersConfig struct {
	CSP               string
	HSTSMaxAge        int64
	PermissionsPolicy string
	// Development disables HSTS and host checks.
	Development bool
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		// The board posts plain forms and serves PDFs inline from the same origin.
		CSP: "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"object-src 'self'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'",
		HSTSMaxAge:        31536000,
		PermissionsPolicy: "geolocation=(), microphone=(), camera=(), payment=()",
	}
}

// Headers applies the security headers through unrolled/secure, plus the
// cross origin policies.
type Headers struct {
	secure *secure.Secure
}

func NewHeaders(config HeadersConfig) *Headers {
	return &Headers{
		secure: secure.New(secure.Options{
			FrameDeny:             true,
			ContentTypeNosniff:    true,
			BrowserXssFilter:      true,
			ReferrerPolicy:        "strict-origin-when-cross-origin",
			ContentSecurityPolicy: config.CSP,
			PermissionsPolicy:     config.PermissionsPolicy,
			STSSeconds:            config.HSTSMaxAge,
			STSIncludeSubdomains:  true,
			SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
			IsDevelopment:         config.Development,
		}),
	}
}

func (h *Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.secure.Process(w, r); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// StaticAssetMiddleware adds long lived caching headers.
func StaticAssetMiddleware(maxAge int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 {
				w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
			}
			next.ServeHTTP(w, r)
		})
	}
}
