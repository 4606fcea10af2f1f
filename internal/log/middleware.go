package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// Middleware stores logger in the request context.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request logger, or one wrapping slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}

// RequestIDMiddleware tags the request logger with the id returned by
// extract. It must run after the middleware that assigns the id.
func RequestIDMiddleware(extract func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := extract(r.Context())
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			logger := FromContext(r.Context()).With(FieldRequestID, id)
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), logger)))
		})
	}
}

// StructuredLogger logs domain events with the standard field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogDeclaration records a committed declaration command.
func (sl *StructuredLogger) LogDeclaration(ctx context.Context, op, kind, start, end string, affected int64) {
	fields := NewFields().
		WithDeclaration(kind, start, end).
		WithOperation(op).
		WithComponent(ComponentFiscal)
	fields[FieldAffected] = affected
	sl.logger.InfoContext(ctx, "Declaration recorded", fields.ToSlice()...)
}

// LogPayment records an invoice payment status change.
func (sl *StructuredLogger) LogPayment(ctx context.Context, op string, id, number, amountCents int64) {
	fields := NewFields().
		WithInvoice(id, number, amountCents, "").
		WithOperation(op).
		WithComponent(ComponentInvoice)
	sl.logger.InfoContext(ctx, "Invoice payment status changed", fields.ToSlice()...)
}

// LogError logs err with its category, at warn level for client errors.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, errorType, component, operation string) {
	level := slog.LevelError
	switch errorType {
	case ErrorTypeValidation, ErrorTypeNotFound, ErrorTypeConflict:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithError(err, errorType).
		WithOperation(operation).
		WithComponent(component)
	sl.logger.Log(ctx, level, msg, fields.ToSlice()...)
}
