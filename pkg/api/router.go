package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// NewRouter wires the middleware stack and all routes.
//
// Routes:
//   - GET /health, GET /health/ready - probes, unauthenticated
//   - GET /metrics - Prometheus metrics, unauthenticated
//   - GET/POST /auth/login, GET /auth/logout
//   - GET /auth/confirm/{token} - confirmation link from the admin mail
//   - GET /auth/home, GET /auth/unconfirmed
//   - GET/POST /auth/profile
//   - GET /generate/config, GET /generate/readme - confirmed users
//   - GET /config/info - admins
//   - /admin/users* - admin JSON console
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(httpMetrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.Liveness)
		r.Get("/ready", h.Readiness)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/auth/home", http.StatusTemporaryRedirect)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.LoginPage)
		r.Post("/login", h.Login)
		r.Get("/logout", h.Logout)
		r.Get("/confirm/{token}", h.Confirm)
		r.Get("/home", h.Home)
		r.Get("/unconfirmed", h.Unconfirmed)
		r.Get("/profile", h.ProfilePage)
		r.Post("/profile", h.UpdateProfile)
	})

	r.Route("/generate", func(r chi.Router) {
		r.Get("/config", h.GenerateConfig)
		r.Get("/readme", h.GenerateReadme)
	})

	r.Get("/config/info", h.ConfigInfo)

	r.Route("/admin/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/{id}/confirm", h.ConfirmUser)
		r.Post("/{id}/deactivate", h.DeactivateUser)
		r.Delete("/{id}", h.DeleteUser)
	})

	return r
}

// isHealthPath returns true if the request path is a probe endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/") || path == "/metrics"
}

// requestLogger logs request start at DEBUG and completion at INFO.
// Probe endpoints complete at DEBUG to keep logs quiet.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		if isHealthPath(r.URL.Path) {
			logger.Debug("request completed", logArgs...)
		} else {
			logger.Info("request completed", logArgs...)
		}
	})
}
