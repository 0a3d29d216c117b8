// Package handlers maps HTTP requests onto the stores and renders the
// pages and JSON responses of the tracker.
package handlers

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/models"
)

// UserStore is what the handlers need from the credential store.
type UserStore interface {
	Create(ctx context.Context, email, password string, isAdmin bool) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}

// LocationStore is what the handlers need from the location store.
type LocationStore interface {
	Record(ctx context.Context, userID int64, lat, lng float64) (*models.LocationSample, error)
	RecentFor(ctx context.Context, userID int64, limit int) ([]*models.LocationSample, error)
	LatestForAllUsers(ctx context.Context) (map[int64]*models.LocationSample, error)
}

// Pinger reports database reachability for the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler bundles the dependencies shared by every route.
type Handler struct {
	users     UserStore
	locations LocationStore
	auth      *auth.Service
	sessions  *auth.Middleware
	templates *Templates
	db        Pinger
}

func New(users UserStore, locations LocationStore, authService *auth.Service, sessions *auth.Middleware, templates *Templates, db Pinger) *Handler {
	return &Handler{
		users:     users,
		locations: locations,
		auth:      authService,
		sessions:  sessions,
		templates: templates,
		db:        db,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("failed to write JSON response")
	}
}

// serverError logs err and answers with a 500 in the format the route expects.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	if isAPIRequest(r) {
		writeJSON(w, r, http.StatusInternalServerError, statusResponse{Status: "error"})
		return
	}
	h.templates.RenderErrorPage(w, r, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

type statusResponse struct {
	Status string `json:"status"`
}

// Home renders the landing page.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.templates.Render(w, r, http.StatusOK, "index.html", Page{Title: "Home"})
}

// NotFound renders the 404 page, or a JSON body under /api/.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeJSON(w, r, http.StatusNotFound, statusResponse{Status: "error"})
		return
	}
	h.templates.RenderErrorPage(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// CSRFFailure answers a request rejected by the CSRF check.
func (h *Handler) CSRFFailure(w http.ResponseWriter, r *http.Request, _ error) {
	if isAPIRequest(r) {
		writeJSON(w, r, http.StatusForbidden, statusResponse{Status: "error"})
		return
	}
	h.templates.RenderErrorPage(w, r, http.StatusForbidden, "Your session form has expired. Please go back and try again.")
}

// TooManyRequests answers a request rejected by the rate limiter.
func (h *Handler) TooManyRequests(w http.ResponseWriter, r *http.Request) {
	h.templates.RenderErrorPage(w, r, http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.")
}
