package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ledger"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/ratelimit"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/service/governance"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/stream"
)

// Server is the Warden HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Purger, Archiver, MCPServer, RateLimiter, Stream.
type ServerConfig struct {
	// Required dependencies.
	Governance *governance.Service
	Ledger     ledger.Store
	Logger     *slog.Logger

	// Optional dependencies (nil = disabled).
	Purger      ledger.Purger
	Archiver    ledger.Archiver
	MCPServer   *mcpserver.MCPServer
	RateLimiter ratelimit.Limiter
	Stream      *stream.Hub

	// Retention defaults for the admin purge route.
	RetentionDays int
	AdminAPIKey   string

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = 1 << 20
	}
	h := NewHandlers(HandlersDeps{
		Governance:          cfg.Governance,
		Ledger:              cfg.Ledger,
		Purger:              cfg.Purger,
		Archiver:            cfg.Archiver,
		RetentionDays:       cfg.RetentionDays,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	r := chi.NewRouter()

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	r.Use(requestIDMiddleware)
	r.Use(chimw.RealIP)
	r.Use(securityHeadersMiddleware)
	r.Use(tracingMiddleware)
	r.Use(loggingMiddleware(cfg.Logger))
	r.Use(recoveryMiddleware(cfg.Logger))

	r.Get("/health", h.HandleHealth)

	limited := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimiter != nil {
		limited = ratelimit.Middleware(cfg.RateLimiter, ratelimit.IPKeyFunc,
			func(r *http.Request) string { return RequestIDFromContext(r.Context()) }, cfg.Logger)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(limited).Post("/evaluate", h.HandleEvaluate)
		r.Get("/decisions", h.HandleListDecisions)
		r.Get("/decisions/{id}", h.HandleGetDecision)
		r.Get("/decisions/{id}/explanation", h.HandleExplain)
		r.Post("/decisions/{id}/execution", h.HandleRecordExecution)
		r.Get("/export/decisions", h.HandleExportDecisions)
		r.Get("/aggressiveness", h.HandleAggressiveness)
		r.With(limited).Post("/actions", h.HandleRecordAction)
		r.Get("/reports/daily", h.HandleDailyReport)
		if cfg.Stream != nil {
			r.Get("/stream", cfg.Stream.HandleWS)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdminKey(cfg.AdminAPIKey))
			r.Post("/retention/purge", h.HandlePurge)
			r.Get("/retention/purges", h.HandlePurgeLog)
		})
	})

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: r,
		logger:  cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
