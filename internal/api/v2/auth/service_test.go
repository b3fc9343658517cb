package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
)

func newTestService(t *testing.T, ttl time.Duration) (*TokenService, *datastore.User) {
	t.Helper()

	settings := &conf.Settings{
		Output: conf.OutputSettings{Database: conf.DatabaseSettings{Type: "sqlite", Path: ":memory:"}},
	}
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	user := &datastore.User{Username: "operator", PasswordHash: hash}
	require.NoError(t, store.CreateUser(user))

	return NewTokenService(store, ttl, nil), user
}

func TestLoginAndValidate(t *testing.T) {
	service, user := newTestService(t, time.Hour)

	token, principal, err := service.Login("operator", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, principal.UserID)

	resolved, ok := service.Validate(token)
	require.True(t, ok)
	assert.Equal(t, "operator", resolved.Username)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	service, _ := newTestService(t, time.Hour)

	_, _, err := service.Login("operator", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	service, _ := newTestService(t, time.Hour)

	// Same error as a bad password; usernames are not enumerable.
	_, _, err := service.Login("nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	service, _ := newTestService(t, time.Hour)

	token, _, err := service.Login("operator", "hunter2")
	require.NoError(t, err)

	service.Revoke(token)
	_, ok := service.Validate(token)
	assert.False(t, ok)
}

func TestTokensAreUnique(t *testing.T) {
	service, _ := newTestService(t, time.Hour)

	first, _, err := service.Login("operator", "hunter2")
	require.NoError(t, err)
	second, _, err := service.Login("operator", "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
