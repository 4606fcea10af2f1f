package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"picocompta/internal/core"
	applog "picocompta/internal/log"
	"picocompta/internal/store"
)

// handleBoardPage renders the yearly declaration board.
func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	year, err := parseYear(q, s.today())
	if err != nil {
		year = s.today().Year()
	}

	var page boardPage
	pi, err := s.svc.Profile.Get(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		page = boardPage{Year: year, Onboarding: true, Today: s.today().French()}
	case err != nil:
		s.renderError(w, r, err)
		return
	default:
		resp, err := s.buildBoard(ctx, year)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		page = newBoardPage(resp, pi)
	}
	if msg := q.Get("error"); msg != "" {
		page.Flash, page.FlashError = msg, true
	} else if msg := q.Get("ok"); msg != "" {
		page.Flash = msg
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "board.html", page); err != nil {
		applog.FromContext(ctx).Error("Board template execution failed", applog.FieldError, err)
	}
}

// handleBoardDeclaration handles the board form and redirects back to the
// board of the period's year.
func (s *Server) handleBoardDeclaration(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.fail(w, r, applog.OpDeclare, core.NewValidationError("body", "invalid form"))
		return
	}
	req, err := declarationFromForm(r.PostForm)
	year := s.today().Year()
	if err == nil {
		year = req.Start.Year()
		_, _, err = s.declare(r.Context(), req)
	}

	target := url.Values{"year": {fmt.Sprint(year)}}
	if err != nil {
		status, errorType := statusFor(err)
		if status == http.StatusInternalServerError {
			s.fail(w, r, applog.OpDeclare, err)
			return
		}
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Board declaration refused", err, errorType, applog.ComponentHTTP, applog.OpDeclare)
		target.Set("error", err.Error())
	} else {
		target.Set("ok", "Déclaration enregistrée")
	}
	http.Redirect(w, r, "/?"+target.Encode(), http.StatusSeeOther)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, errorType := statusFor(err)
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Board rendering failed", err, errorType, applog.ComponentHTTP, "board")
	http.Error(w, http.StatusText(status), status)
}
