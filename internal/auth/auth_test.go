package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyledger/internal/core"
	"moneyledger/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { store.Close() })
	return NewService(store, time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ada", "Ada@Example.com", "s3cret"))

	// Emails are matched case-insensitively.
	token, err := svc.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	ownerID, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.NotEmpty(t, ownerID)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Register(ctx, "Ada", "not-an-email", "s3cret"), core.ErrInvalidInput)
	assert.ErrorIs(t, svc.Register(ctx, "Ada", "", "s3cret"), core.ErrInvalidInput)
	assert.ErrorIs(t, svc.Register(ctx, "Ada", "ada@example.com", ""), core.ErrInvalidInput)

	require.NoError(t, svc.Register(ctx, "Ada", "ada@example.com", "s3cret"))
	assert.ErrorIs(t, svc.Register(ctx, "Other", "ADA@example.com", "pw"), core.ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ada", "ada@example.com", "s3cret"))

	_, err := svc.Login(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Authenticate(ctx, "unknown-token")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "Ada", "ada@example.com", "s3cret"))
	token, err := svc.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	// Revoking an unknown token is not an error.
	assert.NoError(t, svc.Logout(ctx, token))
}

func TestSessionExpiry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	require.NoError(t, svc.Register(ctx, "Ada", "ada@example.com", "s3cret"))
	token, err := svc.Login(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(59 * time.Minute) }
	_, err = svc.Authenticate(ctx, token)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(61 * time.Minute) }
	_, err = svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	dropped, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)
}
