package handlers

import (
	"net/http"
)

const lastSeenLayout = "2006-01-02 15:04"

// AdminRow is one line of the admin overview.
type AdminRow struct {
	UserID   int64
	Email    string
	IsAdmin  bool
	Lat      *float64
	Lng      *float64
	LastSeen string
}

// AdminPanel lists every user with their latest known position.
func (h *Handler) AdminPanel(w http.ResponseWriter, r *http.Request) {
	rows, err := h.adminRows(r)
	if err != nil {
		h.serverError(w, r, err, "could not build admin overview")
		return
	}
	h.templates.Render(w, r, http.StatusOK, "admin.html", Page{Title: "Admin", Data: rows})
}

func (h *Handler) adminRows(r *http.Request) ([]AdminRow, error) {
	users, err := h.users.List(r.Context())
	if err != nil {
		return nil, err
	}
	latest, err := h.locations.LatestForAllUsers(r.Context())
	if err != nil {
		return nil, err
	}

	rows := make([]AdminRow, 0, len(users))
	for _, u := range users {
		row := AdminRow{
			UserID:   u.ID,
			Email:    u.Email,
			IsAdmin:  u.IsAdmin,
			LastSeen: "Never",
		}
		if sample := latest[u.ID]; sample != nil {
			lat, lng := sample.Latitude, sample.Longitude
			row.Lat = &lat
			row.Lng = &lng
			row.LastSeen = sample.Timestamp.UTC().Format(lastSeenLayout)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
