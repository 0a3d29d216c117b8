// Package auth implements session based authentication: server-side
// sessions, the login service, request middleware and CSRF protection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/location-tracker/app/internal/logging"
	"github.com/location-tracker/app/internal/models"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession means the request carries no usable session.
	ErrNoSession = errors.New("no active session")
)

// Users is the part of the credential store the service needs.
type Users interface {
	Verify(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Service moves a client between anonymous and authenticated.
type Service struct {
	users    Users
	sessions SessionStore
	ttl      time.Duration
}

func NewService(users Users, sessions SessionStore, ttl time.Duration) *Service {
	return &Service{users: users, sessions: sessions, ttl: ttl}
}

// Login checks the credentials and starts a session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, *models.User, error) {
	user, err := s.users.Verify(ctx, email, password)
	if err != nil {
		return nil, nil, fmt.Errorf("verify credentials: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	session, err := NewSession(user.ID, s.ttl)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}
	return session, user, nil
}

// Logout ends the session. Unknown ids are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Resolve returns the user behind sessionID and the session with its expiry
// slid forward, so the caller can re-issue the cookie.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*models.User, *Session, error) {
	if sessionID == "" {
		return nil, nil, ErrNoSession
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return nil, nil, ErrNoSession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get session: %w", err)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load session user: %w", err)
	}
	if user == nil {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, nil, ErrNoSession
	}

	now := time.Now()
	expiry := now.Add(s.ttl)
	if err := s.sessions.Touch(ctx, sessionID, expiry); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", user.ID).Msg("failed to extend session")
		return user, session, nil
	}
	session.LastAccessedAt = now
	session.ExpiresAt = expiry
	return user, session, nil
}

// ActiveSessions reports how many sessions the store holds.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	return s.sessions.Count(ctx)
}

// CleanupExpired removes expired sessions from the store.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	return s.sessions.CleanupExpired(ctx)
}
