// Package http serves the declaration board and the JSON API.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"picocompta/internal/core"
	"picocompta/internal/fiscal"
	"picocompta/internal/invoicepdf"
	applog "picocompta/internal/log"
	"picocompta/internal/middleware/ratelimit"
	"picocompta/internal/middleware/security"
	"picocompta/internal/middleware/trace"
	"picocompta/internal/services"
	"picocompta/internal/store"
	appweb "picocompta/web"
)

// Services groups what the handlers call into.
type Services struct {
	Store     store.Store
	Profile   *services.ProfileService
	Clients   *services.ClientService
	Invoices  *services.InvoiceService
	Insights  *services.InsightsService
	Board     *fiscal.BoardBuilder
	Resolver  *fiscal.Resolver
	Committer *fiscal.Committer
	Liability *fiscal.LiabilityEngine
	PDF       *invoicepdf.Generator
}

// NewServices wires the services over one store. publisher may be nil.
func NewServices(s store.Store, publisher services.LedgerPublisher, pdf *invoicepdf.Generator) Services {
	invoices := services.NewInvoiceService(s, publisher)
	return Services{
		Store:     s,
		Profile:   services.NewProfileService(s),
		Clients:   services.NewClientService(s),
		Invoices:  invoices,
		Insights:  services.NewInsightsService(s, invoices),
		Board:     fiscal.NewBoardBuilder(s),
		Resolver:  fiscal.NewResolver(s),
		Committer: fiscal.NewCommitter(s),
		Liability: fiscal.NewLiabilityEngine(s),
		PDF:       pdf,
	}
}

type Config struct {
	Addr string
	// RateLimit is the number of mutating requests allowed per minute and
	// client.
	RateLimit   int
	Development bool
	// Today overrides the clock, for tests.
	Today func() core.Date
}

type Server struct {
	http.Server
	svc       Services
	templates *template.Template
	today     func() core.Date
	logger    *applog.Logger
	events    *applog.StructuredLogger

	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(cfg Config, svc Services, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		svc:       svc,
		templates: t,
		today:     cfg.Today,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		detector:  security.NewDetector(),
	}
	if s.today == nil {
		s.today = services.Today
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)
	s.limiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit,
		KeyFunc: func(r *http.Request) (string, error) {
			return s.detector.ExtractClientIP(r), nil
		},
	})

	headersConfig := security.DefaultHeadersConfig()
	headersConfig.Development = cfg.Development

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(security.NewHeaders(headersConfig)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(headers *security.Headers) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.GetRequestID))
	r.Use(s.detector.Middleware)
	r.Use(headers.Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		r.With(security.StaticAssetMiddleware(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	r.Get("/", s.handleBoardPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/profile", s.handleGetProfile)
		r.Get("/clients", s.handleListClients)
		r.Get("/clients/{id}", s.handleGetClient)
		r.Get("/invoices", s.handleListInvoices)
		r.Get("/invoices/{id}", s.handleGetInvoice)
		r.Get("/invoices/{id}/pdf", s.handleInvoicePDF)
		r.Get("/periods", s.handlePeriods)
		r.Get("/board", s.handleBoard)
		r.Get("/declarations/state", s.handleDeclarationState)
		r.Get("/insights/home", s.handleInsightsHome)
		r.Get("/insights/ceilings", s.handleInsightsCeilings)
		r.Get("/insights/clients", s.handleInsightsClients)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/profile", s.handleRegisterProfile)
			r.Put("/profile", s.handleUpdateProfile)
			r.Post("/clients", s.handleCreateClient)
			r.Put("/clients/{id}", s.handleUpdateClient)
			r.Post("/invoices", s.handleCreateInvoice)
			r.Put("/invoices/{id}", s.handleUpdateInvoice)
			r.Post("/invoices/{id}/paid", s.handleMarkPaid)
			r.Delete("/invoices/{id}/paid", s.handleMarkUnpaid)
			r.Post("/declarations", s.handleDeclaration)
			r.Post("/liability/evaluate", s.handleEvaluateLiability)
		})
	})

	r.With(s.limiter.Middleware).Post("/board/declarations", s.handleBoardDeclaration)
	return r
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// Metrics exposes the middleware counters for the status log.
func (s *Server) Metrics() (requests trace.Metrics, suspicious, rateLimited int64) {
	return s.tracer.GetMetrics(), s.detector.SuspiciousCount(), s.limiter.Rejected()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady pings the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Store.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).Warn("Readiness check failed", applog.FieldError, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// fail logs err at a level matching its category and writes the JSON error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	_, errorType := statusFor(err)
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), "Request failed", err, errorType, applog.ComponentHTTP, op)
	ErrorResponse(err).Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewResponse().Status(status).JSON(v).Write(w)
}
