package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/unsubtrack/tracker/internal/api"
	"github.com/unsubtrack/tracker/internal/auth"
	"github.com/unsubtrack/tracker/internal/config"
	"github.com/unsubtrack/tracker/internal/eventlog"
	"github.com/unsubtrack/tracker/internal/ratelimit"
	"github.com/unsubtrack/tracker/internal/storage"
	"github.com/unsubtrack/tracker/internal/web"
)

// Server owns the assembled router and its pipeline.
type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger
}

// New wires the fixed middleware order: correlation id first, then the
// recovery barrier, then request logging, then rate limiting, and finally
// the per-surface authentication applied at the route groups. Rate limiting
// runs before authentication so unauthenticated flooding is rejected before
// any credential work.
func New(cfg *config.Config, logger *slog.Logger, store *storage.Store, recorder *eventlog.Recorder, limiter *ratelimit.Limiter) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(logger, recorder))
	// Permissive CORS for the browser-extension client. Preflights are
	// answered here, before rate limiting and authentication.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
	}))
	r.Use(RateLimitMiddleware(limiter, cfg.RateLimit, recorder))
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "unsub-tracker")
	})

	apiHandler := &api.Handler{Store: store, Recorder: recorder, Logger: logger}
	webHandler := web.NewHandler(store, logger)

	// Public surface.
	r.Get("/", apiHandler.Root)
	r.Handle("/metrics", promhttp.Handler())

	// API surface: bearer-protected except the health probe.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", apiHandler.Health)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuthMiddleware(auth.NewBearerVerifier(cfg.Auth.APIToken)))

			r.Route("/unsubscribed_emails", func(r chi.Router) {
				r.Post("/", apiHandler.CreateEmail)
				r.Get("/", apiHandler.ListEmails)
				r.Get("/export", apiHandler.ExportEmails)
			})
			r.Post("/logs", apiHandler.CreateLog)
			r.Get("/logs", apiHandler.ListLogs)
			r.Get("/test/protected", apiHandler.TestProtected)
		})
	})

	// Web surface: basic-auth-protected.
	r.Route("/web", func(r chi.Router) {
		r.Use(BasicAuthMiddleware(auth.NewBasicVerifier(cfg.Auth.BasicUsername, cfg.Auth.BasicPassword)))

		r.Get("/", webHandler.List)
		r.Get("/export", webHandler.Export)
		r.Get("/test/protected", webHandler.TestProtected)
	})

	return &Server{
		Router: r,
		Port:   cfg.Server.Port,
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
