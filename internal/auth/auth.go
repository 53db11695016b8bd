// Package auth is the identity collaborator: it registers users, issues
// bearer tokens and resolves tokens back to an owner id. The ledger core
// only ever consumes the resolved owner id.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"moneyledger/internal/core"
	"moneyledger/internal/storage"
)

// ErrUnauthenticated is returned for missing, unknown or expired tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

type Service struct {
	store *storage.SQLiteRepository
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store *storage.SQLiteRepository, sessionTTL time.Duration) *Service {
	return &Service{
		store: store,
		ttl:   sessionTTL,
		now:   time.Now,
	}
}

// Register creates a user with a bcrypt password hash. Emails are unique.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return core.ErrInvalidInput
	}

	if _, err := s.store.Queries().GetUserByEmail(ctx, email); err == nil {
		return core.ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.Queries().CreateUser(ctx, storage.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	})
}

// Login checks the credentials and issues an opaque bearer token with a TTL.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.Queries().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", core.ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", core.ErrInvalidCredentials
	}

	token := uuid.NewString()
	err = s.store.Queries().CreateSession(ctx, storage.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().Add(s.ttl),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Logout revokes a token. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.Queries().DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to the owning user id.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	session, err := s.store.Queries().GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrUnauthenticated
		}
		return "", err
	}
	if !session.ExpiresAt.After(s.now()) {
		return "", ErrUnauthenticated
	}
	return session.UserID, nil
}

// SweepExpired removes expired sessions and returns how many were dropped.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.Queries().DeleteExpiredSessions(ctx, s.now())
}
