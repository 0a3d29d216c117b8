package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/location-tracker/app/internal/models"
)

// ErrInvalidCoordinate is returned by Record for NaN or infinite values.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// LocationStore persists timestamped coordinate samples.
type LocationStore struct {
	db *sql.DB

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db, now: time.Now}
}

// timestamp returns the current UTC time, nudged forward when needed so
// that samples recorded by this process are strictly increasing.
func (s *LocationStore) timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Record stores a new sample for userID stamped with the server time.
func (s *LocationStore) Record(ctx context.Context, userID int64, lat, lng float64) (*models.LocationSample, error) {
	if !finite(lat) || !finite(lng) {
		return nil, ErrInvalidCoordinate
	}

	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO locations(user_id, latitude, longitude, recorded_at) VALUES(?, ?, ?, ?)",
		userID, lat, lng, ts)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}

	return &models.LocationSample{
		ID:        id,
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		Timestamp: ts,
	}, nil
}

// RecentFor returns up to limit samples for userID, newest first.
// A limit of zero or less returns all of them.
func (s *LocationStore) RecentFor(ctx context.Context, userID int64, limit int) ([]*models.LocationSample, error) {
	query := `SELECT id, user_id, latitude, longitude, recorded_at
		FROM locations
		WHERE user_id = ?
		ORDER BY recorded_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query locations for user %d: %w", userID, err)
	}
	defer rows.Close()

	samples := []*models.LocationSample{}
	for rows.Next() {
		sample := &models.LocationSample{}
		if err := rows.Scan(&sample.ID, &sample.UserID, &sample.Latitude, &sample.Longitude, &sample.Timestamp); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		sample.Timestamp = sample.Timestamp.UTC()
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query locations for user %d: %w", userID, err)
	}
	return samples, nil
}

// LatestFor returns the newest sample for userID, or nil if there is none.
func (s *LocationStore) LatestFor(ctx context.Context, userID int64) (*models.LocationSample, error) {
	samples, err := s.RecentFor(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	return samples[0], nil
}

// LatestForAllUsers maps every user id to its newest sample. Users without
// samples map to nil.
func (s *LocationStore) LatestForAllUsers(ctx context.Context) (map[int64]*models.LocationSample, error) {
	ids, err := s.userIDs(ctx)
	if err != nil {
		return nil, err
	}

	latest := make(map[int64]*models.LocationSample, len(ids))
	for _, id := range ids {
		sample, err := s.LatestFor(ctx, id)
		if err != nil {
			return nil, err
		}
		latest[id] = sample
	}
	return latest, nil
}

// userIDs reads the ids up front; the connection pool holds a single
// connection, so the rows must be closed before issuing further queries.
func (s *LocationStore) userIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
