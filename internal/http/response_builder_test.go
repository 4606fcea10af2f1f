package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"picocompta/internal/core"
)

func TestResponseBuilderJSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/clients/1").
		JSON(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Location"); got != "/api/clients/1" {
		t.Errorf("Location = %q", got)
	}
	if w.Body.String() != `{"id":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilderUnencodable(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"f": func() {}}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.NewValidationError("name", "required"), http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("create: %w", core.NewValidationError("x", "y")), http.StatusUnprocessableEntity},
		{"conflict", core.NewStateConflict("declare", "period has not ended"), http.StatusConflict},
		{"not found", fmt.Errorf("get invoice 3: %w", core.ErrNotFound), http.StatusNotFound},
		{"storage", core.NewStorageError("query", errors.New("disk full")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := statusFor(tc.err); got != tc.want {
				t.Errorf("statusFor() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestErrorResponseBodies(t *testing.T) {
	w := httptest.NewRecorder()
	verr := core.NewValidationError("siret", "must be 14 digits")
	ErrorResponse(verr).Write(w)

	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "siret" {
		t.Errorf("Fields = %+v", body.Fields)
	}

	w = httptest.NewRecorder()
	ErrorResponse(core.NewStorageError("query", errors.New("secret path /var/db"))).Write(w)
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "Internal Server Error" {
		t.Errorf("storage error leaked: %q", body.Error)
	}
}
