package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

func TestSessionIssueAndVerify(t *testing.T) {
	svc, err := NewSessionService(SessionConfig{Secret: testSessionSecret})
	require.NoError(t, err)

	token, err := svc.Issue(&models.User{ID: 1130, Username: "jh1130"})
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, 1130, claims.UserID)
	assert.Equal(t, "jh1130", claims.Username)
	assert.NotEmpty(t, claims.ID, "sessions carry a unique token id")
}

func TestSessionTokensAreUnique(t *testing.T) {
	svc, err := NewSessionService(SessionConfig{Secret: testSessionSecret})
	require.NoError(t, err)

	user := &models.User{ID: 1130, Username: "jh1130"}
	first, err := svc.Issue(user)
	require.NoError(t, err)
	second, err := svc.Issue(user)
	require.NoError(t, err)

	a, err := svc.Verify(first)
	require.NoError(t, err)
	b, err := svc.Verify(second)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSessionExpiry(t *testing.T) {
	svc, err := NewSessionService(SessionConfig{
		Secret:   testSessionSecret,
		Duration: -time.Second,
	})
	require.NoError(t, err)

	token, err := svc.Issue(&models.User{ID: 1130, Username: "jh1130"})
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredSession)
}

func TestSessionWrongSecret(t *testing.T) {
	svc, err := NewSessionService(SessionConfig{Secret: testSessionSecret})
	require.NoError(t, err)
	other, err := NewSessionService(SessionConfig{Secret: "another-session-secret-0123456789abc"})
	require.NoError(t, err)

	token, err := svc.Issue(&models.User{ID: 1130, Username: "jh1130"})
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionSecretTooShort(t *testing.T) {
	_, err := NewSessionService(SessionConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}
