package auth

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/location-tracker/app/internal/config"
)

// SessionStoreFactory owns the backing resources of the configured store.
type SessionStoreFactory struct {
	db *badger.DB
}

// NewSessionStoreFactory opens Badger at cfg.StorePath when the badger store
// is selected. The memory store needs nothing.
func NewSessionStoreFactory(cfg config.SessionConfig) (*SessionStoreFactory, error) {
	factory := &SessionStoreFactory{}

	switch cfg.Store {
	case config.SessionStoreBadger:
		opts := badger.DefaultOptions(cfg.StorePath)
		opts.Logger = nil

		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("open badger db for sessions: %w", err)
		}
		factory.db = db
	case config.SessionStoreMemory, "":
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}

	return factory, nil
}

func (f *SessionStoreFactory) CreateStore() SessionStore {
	if f.db != nil {
		return NewBadgerSessionStore(f.db)
	}
	return NewMemorySessionStore()
}

func (f *SessionStoreFactory) Close() error {
	if f.db != nil {
		return f.db.Close()
	}
	return nil
}
