package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
)

const maxBodyBytes = 1 << 20

// parseYear reads the year query parameter, defaulting to the year of today.
func parseYear(q url.Values, today core.Date) (int, error) {
	v := strings.TrimSpace(q.Get("year"))
	if v == "" {
		return today.Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || !fiscal.SupportedYear(y) {
		return 0, core.NewValidationError("year", fmt.Sprintf("must be between %d and %d", fiscal.MinYear, fiscal.MaxYear))
	}
	return y, nil
}

// parseID reads the {id} route parameter.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func parseInt64Param(q url.Values, key string) (int64, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, core.NewValidationError(key, "must be a positive integer")
	}
	return n, nil
}

// parseBoolParam returns nil when key is absent.
func parseBoolParam(q url.Values, key string) (*bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, core.NewValidationError(key, "must be true or false")
	}
	return &b, nil
}

// decodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewValidationError("body", "must not be empty")
		}
		return core.NewValidationError("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	if dec.More() {
		return core.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

// declarationRequest is the body of POST /api/declarations and of the board
// form.
type declarationRequest struct {
	Kind   string    `json:"kind"`
	Action string    `json:"action"`
	Start  core.Date `json:"start"`
	End    core.Date `json:"end"`
}

func declarationFromForm(form url.Values) (declarationRequest, error) {
	req := declarationRequest{
		Kind:   sanitizeInput(form.Get("kind")),
		Action: sanitizeInput(form.Get("action")),
	}
	v := &core.ValidationError{}
	var err error
	if req.Start, err = core.ParseDate(sanitizeInput(form.Get("start"))); err != nil {
		v.Add("start", "must be a date (YYYY-MM-DD)")
	}
	if req.End, err = core.ParseDate(sanitizeInput(form.Get("end"))); err != nil {
		v.Add("end", "must be a date (YYYY-MM-DD)")
	}
	return req, v.Err()
}

// command resolves the request against the generated periods so only real
// declaration periods can be committed.
func (req declarationRequest) command(find func(start, end core.Date) (core.Period, error)) (fiscal.Command, error) {
	v := &core.ValidationError{}
	kind, err := core.ParseDeclarationKind(req.Kind)
	if err != nil {
		v.Add("kind", "must be URSSAF or TVA")
	}
	action := fiscal.Action(strings.ToLower(strings.TrimSpace(req.Action)))
	if !action.IsValid() {
		v.Add("action", "must be declare or declare_zero")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		v.Add("period", "start and end are required")
	}
	if err := v.Err(); err != nil {
		return fiscal.Command{}, err
	}
	p, err := find(req.Start, req.End)
	if err != nil {
		return fiscal.Command{}, err
	}
	return fiscal.Command{Action: action, Kind: kind, Period: p}, nil
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
