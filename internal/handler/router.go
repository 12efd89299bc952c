package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is a standard net/http middleware.
type Middleware = func(http.Handler) http.Handler

// RouterConfig carries the handlers and middleware mounted by NewRouter.
type RouterConfig struct {
	Health  *HealthHandler
	Metrics *MetricsHandler
	Auth    *AuthHandler
	Users   *UserHandler
	Groups  *GroupHandler

	// Global runs on every request, in order.
	Global []Middleware
	// RequireUser resolves the session user; mounted on protected routes.
	RequireUser Middleware
	// AuthRateLimit guards register and login. Optional.
	AuthRateLimit Middleware
}

// NewRouter builds the API route tree.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := New()
	r := chi.NewRouter()

	for _, mw := range cfg.Global {
		r.Use(mw)
	}

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	limit := cfg.AuthRateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limit).Post("/register", cfg.Auth.Register)
			r.With(limit).Post("/login", cfg.Auth.Login)
			r.Post("/logout", cfg.Auth.Logout)
			r.Get("/verify-email", cfg.Auth.VerifyEmail)
			r.With(cfg.RequireUser).Get("/me", cfg.Auth.Me)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.RequireUser)

			r.Get("/users", cfg.Users.List)

			r.Route("/groups", func(r chi.Router) {
				r.Get("/", cfg.Groups.List)
				r.Post("/", cfg.Groups.Create)
				r.Get("/{id}", cfg.Groups.Get)
				r.Patch("/{id}", cfg.Groups.Update)
				r.Delete("/{id}", cfg.Groups.Delete)
				r.Put("/{id}/members", cfg.Groups.UpdateMembers)
			})
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
