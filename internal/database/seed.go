package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/location-tracker/app/internal/models"
)

// EnsureAdmin creates the administrator account unless a user with the
// email already exists. It reports whether a new account was created.
// An existing account is left untouched, admin flag included.
func EnsureAdmin(ctx context.Context, users *UserStore, email, password string) (*models.User, bool, error) {
	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	admin, err := users.Create(ctx, email, password, true)
	if errors.Is(err, ErrDuplicateEmail) {
		// created concurrently by another process
		existing, err = users.FindByEmail(ctx, email)
		if err != nil {
			return nil, false, fmt.Errorf("seed admin: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("seed admin: %w", err)
	}
	return admin, true, nil
}
