package supervisor

import (
	"context"
	"time"

	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/metrics"
)

// SessionSweeper is implemented by *auth.Service.
type SessionSweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
	ActiveSessions(ctx context.Context) (int, error)
}

// SessionJanitor periodically drops expired sessions and publishes the
// session gauge.
type SessionJanitor struct {
	sessions SessionSweeper
	interval time.Duration
}

func NewSessionJanitor(sessions SessionSweeper, interval time.Duration) *SessionJanitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &SessionJanitor{sessions: sessions, interval: interval}
}

// Serve implements suture.Service. It sweeps once at start, then on every
// tick. Store errors are logged and retried on the next tick.
func (j *SessionJanitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SessionJanitor) sweep(ctx context.Context) {
	removed, err := j.sessions.CleanupExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Msg("session cleanup failed")
		}
		return
	}
	metrics.RecordSessionsExpired(removed)
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("expired sessions removed")
	}

	active, err := j.sessions.ActiveSessions(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("could not count sessions")
		return
	}
	metrics.SetActiveSessions(active)
}

func (j *SessionJanitor) String() string {
	return "session-janitor"
}
