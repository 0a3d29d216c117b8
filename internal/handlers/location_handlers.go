package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/database"
	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/metrics"
	"github.com/location-tracker/app/internal/validation"
)

const maxLocationBody = 1 << 16

// Coordinate accepts a JSON number, a numeric string or null. Null and the
// empty string decode to zero, which validation then rejects.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*c = 0
			return nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("coordinate %q is not a number", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("coordinate %q is not finite", raw)
	}
	*c = Coordinate(f)
	return nil
}

// locationRequest accepts any finite, non-zero pair. Range is not checked:
// clients may report projected or offset values and they are stored as sent.
type locationRequest struct {
	Lat Coordinate `json:"lat" validate:"required"`
	Lng Coordinate `json:"lng" validate:"required"`
}

// UpdateLocation records a coordinate pair for the signed-in user.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	log := logging.Ctx(r.Context())

	var req locationRequest
	body := http.MaxBytesReader(w, r.Body, maxLocationBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		metrics.RecordLocationUpdate(metrics.ResultInvalid)
		log.Debug().Err(err).Int64("user_id", user.ID).Msg("malformed location payload")
		writeJSON(w, r, http.StatusBadRequest, statusResponse{Status: "error"})
		return
	}

	if err := validation.ValidateStruct(&req); err != nil {
		metrics.RecordLocationUpdate(metrics.ResultInvalid)
		log.Debug().Err(err).Int64("user_id", user.ID).Msg("invalid location payload")
		writeJSON(w, r, http.StatusBadRequest, statusResponse{Status: "error"})
		return
	}

	sample, err := h.locations.Record(r.Context(), user.ID, float64(req.Lat), float64(req.Lng))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, database.ErrInvalidCoordinate) {
			status = http.StatusBadRequest
		}
		metrics.RecordLocationUpdate(metrics.ResultError)
		log.Error().Err(err).Int64("user_id", user.ID).Msg("could not record location")
		writeJSON(w, r, status, statusResponse{Status: "error"})
		return
	}

	metrics.RecordLocationUpdate(metrics.ResultSuccess)
	log.Debug().Int64("user_id", user.ID).Int64("location_id", sample.ID).Msg("location recorded")
	writeJSON(w, r, http.StatusOK, statusResponse{Status: "success"})
}
