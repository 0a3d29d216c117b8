package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/location-tracker/app/internal/config"
	"github.com/location-tracker/app/internal/flash"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/models"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// AdminDeniedMessage is flashed when a non-admin opens an admin page.
const AdminDeniedMessage = "Access Denied: Admins Only"

// Middleware resolves the session cookie into a user and gates routes.
type Middleware struct {
	service      *Service
	cookieName   string
	cookieSecure bool
	flash        *flash.Notices
}

func NewMiddleware(service *Service, cfg config.SessionConfig) *Middleware {
	name := cfg.CookieName
	if name == "" {
		name = "session"
	}
	return &Middleware{
		service:      service,
		cookieName:   name,
		cookieSecure: cfg.CookieSecure,
		flash:        flash.New(cfg.CookieSecure),
	}
}

// Flash returns the notice cookie writer, sharing the session cookie's
// Secure setting.
func (m *Middleware) Flash() *flash.Notices {
	return m.flash
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// SessionID returns the raw session token from the request cookie.
func (m *Middleware) SessionID(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetSessionCookie hands the session token to the browser.
func (m *Middleware) SetSessionCookie(w http.ResponseWriter, r *http.Request, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookieSecure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (m *Middleware) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookieSecure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate resolves the current user once per request and re-issues the
// cookie with the slid expiry. Requests without a valid session continue
// anonymously; a stale cookie is cleared.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := m.SessionID(r)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, session, err := m.service.Resolve(r.Context(), sessionID)
		switch {
		case errors.Is(err, ErrNoSession):
			m.ClearSessionCookie(w, r)
			next.ServeHTTP(w, r)
		case err != nil:
			logging.Ctx(r.Context()).Error().Err(err).Msg("failed to resolve session")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		default:
			m.SetSessionCookie(w, r, session)
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		}
	})
}

// RequireAuth sends anonymous visitors to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin lets administrators through. Other signed-in users are sent
// back to their dashboard with a notice.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r.Context())
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if !user.IsAdmin {
			logging.Ctx(r.Context()).Warn().Int64("user_id", user.ID).Str("path", r.URL.Path).Msg("admin access denied")
			m.flash.Set(w, r, flash.Danger, AdminDeniedMessage)
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIAuth rejects anonymous API calls with 401 and a JSON body.
func RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
