package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/api/auth"
	"github.com/marmos91/bankd/pkg/api/handlers"
	apimw "github.com/marmos91/bankd/pkg/api/middleware"
	"github.com/marmos91/bankd/pkg/api/problem"
	"github.com/marmos91/bankd/pkg/metrics"
	"github.com/marmos91/bankd/pkg/models"
	"github.com/marmos91/bankd/pkg/repository"
	"github.com/marmos91/bankd/pkg/session"
)

// Deps are the components the admin API reads from.
type Deps struct {
	Store    *repository.Store
	Sessions *session.Registry
	Users    handlers.UserStore

	// JWT is nil when no secret is configured; the authenticated routes
	// are then not mounted.
	JWT *auth.JWTService
}

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /health/tables - Per-table health
//   - GET /metrics - Prometheus metrics, when enabled
//   - POST /api/v1/auth/login, /api/v1/auth/refresh
//   - GET /api/v1/auth/me, /api/v1/sessions (manager or administrator)
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Sessions)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/tables", healthHandler.Tables)
	})

	if metrics.IsEnabled() {
		r.Handle("/metrics", metrics.Handler())
	}

	if deps.JWT != nil && deps.Users != nil {
		authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT)
		sessionsHandler := handlers.NewSessionsHandler(deps.Sessions)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(apimw.JWTAuth(deps.JWT))
				r.Use(apimw.RequireRole(models.RoleManager, models.RoleAdministrator))
				r.Get("/auth/me", authHandler.Me)
				r.Get("/sessions", sessionsHandler.List)
			})
		})
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, problem.New(http.StatusNotFound, "no such endpoint"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, problem.New(http.StatusMethodNotAllowed, r.Method+" is not supported here"))
	})

	return r
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
