package auth

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerSessionStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewBadgerSessionStore(db)
}

// sessionStores lists every backend; they must behave the same.
func sessionStores(t *testing.T) map[string]SessionStore {
	return map[string]SessionStore{
		"memory": NewMemorySessionStore(),
		"badger": newTestBadgerStore(t),
	}
}

func expiredSession(t *testing.T, userID int64) *Session {
	t.Helper()
	s, err := NewSession(userID, time.Hour)
	require.NoError(t, err)
	s.ExpiresAt = time.Now().Add(-time.Minute)
	return s
}

func TestNewSession(t *testing.T) {
	s, err := NewSession(7, time.Hour)
	require.NoError(t, err)
	assert.Len(t, s.ID, 64)
	assert.Equal(t, int64(7), s.UserID)
	assert.False(t, s.IsExpired())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.ExpiresAt, time.Second)

	other, err := NewSession(7, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, other.ID)
}

func TestSessionStores(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("create and get", func(t *testing.T) {
				s, err := NewSession(1, time.Hour)
				require.NoError(t, err)
				require.NoError(t, store.Create(ctx, s))

				got, err := store.Get(ctx, s.ID)
				require.NoError(t, err)
				assert.Equal(t, s.ID, got.ID)
				assert.Equal(t, int64(1), got.UserID)
				assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))
			})

			t.Run("unknown id", func(t *testing.T) {
				_, err := store.Get(ctx, "nope")
				assert.ErrorIs(t, err, ErrSessionNotFound)
				assert.ErrorIs(t, store.Touch(ctx, "nope", time.Now().Add(time.Hour)), ErrSessionNotFound)
			})

			t.Run("expired", func(t *testing.T) {
				s := expiredSession(t, 2)
				require.NoError(t, store.Create(ctx, s))

				_, err := store.Get(ctx, s.ID)
				assert.ErrorIs(t, err, ErrSessionExpired)
			})

			t.Run("touch extends expiry", func(t *testing.T) {
				s, err := NewSession(3, time.Minute)
				require.NoError(t, err)
				require.NoError(t, store.Create(ctx, s))

				later := time.Now().Add(2 * time.Hour)
				require.NoError(t, store.Touch(ctx, s.ID, later))

				got, err := store.Get(ctx, s.ID)
				require.NoError(t, err)
				assert.WithinDuration(t, later, got.ExpiresAt, time.Millisecond)
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				s, err := NewSession(4, time.Hour)
				require.NoError(t, err)
				require.NoError(t, store.Create(ctx, s))

				require.NoError(t, store.Delete(ctx, s.ID))
				require.NoError(t, store.Delete(ctx, s.ID))
				_, err = store.Get(ctx, s.ID)
				assert.ErrorIs(t, err, ErrSessionNotFound)
			})
		})
	}
}

func TestSessionStores_CleanupExpired(t *testing.T) {
	for name, store := range sessionStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			live, err := NewSession(1, time.Hour)
			require.NoError(t, err)
			require.NoError(t, store.Create(ctx, live))
			require.NoError(t, store.Create(ctx, expiredSession(t, 2)))
			require.NoError(t, store.Create(ctx, expiredSession(t, 3)))

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			removed, err := store.CleanupExpired(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			n, err = store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			_, err = store.Get(ctx, live.ID)
			assert.NoError(t, err)
		})
	}
}
