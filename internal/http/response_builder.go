package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"picocompta/internal/core"
	applog "picocompta/internal/log"
)

// ResponseBuilder assembles a response before writing it in one go.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON encodes v as the body. An encoding failure turns the response into
// a 500.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Response encoding failed", applog.FieldError, err)
		b.statusCode = http.StatusInternalServerError
		data = []byte(`{"error":"internal error"}`)
	}
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.body = data
	return b
}

func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	return b
}

func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields []core.FieldError `json:"fields,omitempty"`
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrStateConflict):
		return http.StatusConflict, applog.ErrorTypeConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrStorage):
		return http.StatusInternalServerError, applog.ErrorTypeDatabase
	}
	return http.StatusInternalServerError, applog.ErrorTypeInternal
}

// ErrorResponse builds the JSON error body for err. Internal failures do not
// leak their message.
func ErrorResponse(err error) *ResponseBuilder {
	status, _ := statusFor(err)
	body := errorBody{Error: err.Error()}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Error = "validation failed"
		body.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}
	return NewResponse().Status(status).JSON(body)
}
