package handlers

import (
	"net/http"

	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/models"
)

// historyLimit is the number of samples shown on the dashboard.
const historyLimit = 20

type dashboardView struct {
	History []*models.LocationSample
	Last    *models.LocationSample
}

// Dashboard shows the signed-in user's recent locations.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())

	history, err := h.locations.RecentFor(r.Context(), user.ID, historyLimit)
	if err != nil {
		h.serverError(w, r, err, "could not load location history")
		return
	}

	view := dashboardView{History: history}
	if len(history) > 0 {
		view.Last = history[0]
	}

	h.templates.Render(w, r, http.StatusOK, "dashboard.html", Page{Title: "Dashboard", Data: view})
}
