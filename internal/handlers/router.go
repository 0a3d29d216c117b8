package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig tunes the middleware chain.
type RouterConfig struct {
	LoginRateLimit    int
	LoginRateWindow   time.Duration
	RateLimitDisabled bool
	CookieSecure      bool
}

// NewRouter wires every route of the application.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(logging.AccessLog)
	r.Use(metrics.Middleware)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	csrf := auth.NewCSRFMiddleware(&auth.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		ErrorHandler: h.CSRFFailure,
	})
	limitLogin := h.loginLimiter(cfg)

	r.Group(func(r chi.Router) {
		r.Use(h.sessions.Authenticate)

		// The API answers anonymous callers with 401 before checking CSRF.
		r.With(auth.RequireAPIAuth, csrf.Protect).Post("/api/update_location", h.UpdateLocation)

		r.Group(func(r chi.Router) {
			r.Use(csrf.Protect)

			r.Get("/", h.Home)
			r.Get("/register", h.RegisterPage)
			r.With(limitLogin).Post("/register", h.Register)
			r.Get("/login", h.LoginPage)
			r.With(limitLogin).Post("/login", h.Login)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)

				r.Get("/logout", h.Logout)
				r.Post("/logout", h.Logout)
				r.Get("/dashboard", h.Dashboard)
				r.With(h.sessions.RequireAdmin).Get("/admin", h.AdminPanel)
			})
		})
	})

	r.NotFound(h.sessions.Authenticate(http.HandlerFunc(h.NotFound)).ServeHTTP)

	return r
}

func (h *Handler) loginLimiter(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled || cfg.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		cfg.LoginRateLimit,
		cfg.LoginRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitHit(r.URL.Path)
			logging.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("rate limit exceeded")
			h.TooManyRequests(w, r)
		}),
	)
}
