package models

import "time"

// LocationSample is a single position reported by a user.
type LocationSample struct {
	ID        int64
	UserID    int64
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}
