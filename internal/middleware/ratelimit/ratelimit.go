// Package ratelimit throttles requests per client IP.
package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"

	applog "picocompta/internal/log"
)

type Config struct {
	RequestsPerMinute int
	// KeyFunc identifies the client. Defaults to httprate.KeyByIP.
	KeyFunc httprate.KeyFunc
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60}
}

// Limiter wraps an httprate sliding window limiter and counts rejections.
type Limiter struct {
	handler  func(http.Handler) http.Handler
	rejected atomic.Int64
}

func New(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	l := &Limiter{}
	l.handler = httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(l.reject),
	)
	return l
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return l.handler(next)
}

// Rejected returns how many requests were refused.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

func (l *Limiter) reject(w http.ResponseWriter, r *http.Request) {
	l.rejected.Add(1)
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldComponent, applog.ComponentSecurity,
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
}
