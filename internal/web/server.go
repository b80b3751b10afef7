// Package web provides the HTTP API for bulk CSV uploads.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/web/middleware"
)

// APIPrefix is the mount point of the bulk upload routes.
const APIPrefix = "/api/v1/bulk-uploads"

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP server for the import API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	health  HealthCheck

	requests *rateLimiter
	uploads  *rateLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck adds a dependency check to /healthz.
func WithHealthCheck(check HealthCheck) Option {
	return func(s *Server) { s.health = check }
}

// NewServer creates a Server for service.
func NewServer(service *core.Service, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Rate.Enabled {
		s.requests = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploads = newRateLimiter(cfg.Rate.UploadsPerHour, time.Hour)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(s.securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route(APIPrefix, func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))
		if s.requests != nil {
			r.Use(s.requests.middleware)
		}

		// Imports run under the service's upload timeout, not the request timeout.
		r.Group(func(r chi.Router) {
			if s.uploads != nil {
				r.Use(s.uploads.middleware)
			}
			r.Post("/upload_accounts/", s.handleUpload(core.KindAccounts))
			r.Post("/upload_transactions/", s.handleUpload(core.KindTransactions))
			r.Post("/upload_categories/", s.handleUpload(core.KindCategories))
			r.Post("/{uploadID}/retry/", s.handleRetry)
		})

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}
			r.Get("/", s.handleHistory)
			r.Get("/templates/{kind}/", s.handleTemplate)
			r.Get("/{uploadID}/", s.handleDetail)
			r.Get("/{uploadID}/errors/", s.handleErrors)
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and the rate limiter janitors.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.requests != nil {
		s.requests.stop()
	}
	if s.uploads != nil {
		s.uploads.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		}
		next.ServeHTTP(w, r)
	})
}
