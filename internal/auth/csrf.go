package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/location-tracker/app/internal/logging"
)

var (
	ErrCSRFTokenMissing = errors.New("CSRF token missing")
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

const csrfContextKey contextKey = "auth.csrf"

// CSRFConfig configures the double-submit cookie check.
type CSRFConfig struct {
	CookieName    string
	HeaderName    string
	FormFieldName string
	CookieSecure  bool
	TokenLength   int
	TokenTTL      time.Duration

	// ExemptMethods skip validation. Defaults to the safe methods.
	ExemptMethods []string

	// ErrorHandler writes the rejection. Defaults to a plain 403.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

func DefaultCSRFConfig() *CSRFConfig {
	return &CSRFConfig{
		CookieName:    "_csrf",
		HeaderName:    "X-CSRF-Token",
		FormFieldName: "csrf_token",
		TokenLength:   32,
		TokenTTL:      24 * time.Hour,
		ExemptMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace},
	}
}

// CSRFMiddleware issues a random token in a cookie readable by page scripts
// and requires unsafe requests to echo it in a header or form field.
type CSRFMiddleware struct {
	config *CSRFConfig
}

func NewCSRFMiddleware(cfg *CSRFConfig) *CSRFMiddleware {
	defaults := DefaultCSRFConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaults.CookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = defaults.HeaderName
	}
	if cfg.FormFieldName == "" {
		cfg.FormFieldName = defaults.FormFieldName
	}
	if cfg.TokenLength == 0 {
		cfg.TokenLength = defaults.TokenLength
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if len(cfg.ExemptMethods) == 0 {
		cfg.ExemptMethods = defaults.ExemptMethods
	}
	return &CSRFMiddleware{config: cfg}
}

// CSRFToken returns the token for the current request, for embedding in forms.
func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfContextKey).(string)
	return token
}

func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.isExemptMethod(r.Method) {
			token := m.ensureToken(w, r)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey, token)))
			return
		}

		token, err := m.validateToken(r)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("CSRF check failed")
			m.handleError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey, token)))
	})
}

func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(m.config.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	token, err := m.generateToken()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to generate CSRF token")
		return ""
	}
	m.setTokenCookie(w, r, token)
	return token
}

func (m *CSRFMiddleware) validateToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrCSRFTokenMissing
	}

	sent := r.Header.Get(m.config.HeaderName)
	if sent == "" {
		sent = r.PostFormValue(m.config.FormFieldName)
	}
	if sent == "" {
		return "", ErrCSRFTokenMissing
	}

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(sent)) != 1 {
		return "", ErrCSRFTokenInvalid
	}
	return cookie.Value, nil
}

func (m *CSRFMiddleware) generateToken() (string, error) {
	b := make([]byte, m.config.TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (m *CSRFMiddleware) setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.config.TokenTTL.Seconds()),
		Secure:   m.config.CookieSecure || r.TLS != nil,
		HttpOnly: false, // page scripts echo it in X-CSRF-Token
		SameSite: http.SameSiteStrictMode,
	})
}

func (m *CSRFMiddleware) isExemptMethod(method string) bool {
	for _, exempt := range m.config.ExemptMethods {
		if strings.EqualFold(method, exempt) {
			return true
		}
	}
	return false
}

func (m *CSRFMiddleware) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if m.config.ErrorHandler != nil {
		m.config.ErrorHandler(w, r, err)
		return
	}
	http.Error(w, err.Error(), http.StatusForbidden)
}
