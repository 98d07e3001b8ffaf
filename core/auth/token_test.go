package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iclass/poto/core/auth"
)

const testSecret = "test-secret-key-for-token-service"

func TestTokenService_IssueVerify(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, svc.TTL())

	token, err := svc.Issue("user_42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user_42", userID)
}

func TestTokenService_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := auth.NewTokenService("")
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestTokenService_Expired(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewTokenService(testSecret, auth.WithTokenTTL(time.Nanosecond))
	require.NoError(t, err)

	token, err := svc.Issue("user_42")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestTokenService_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)
	verifier, err := auth.NewTokenService("a-different-secret-entirely")
	require.NoError(t, err)

	token, err := issuer.Issue("user_42")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenService_Tampered(t *testing.T) {
	t.Parallel()

	svc, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	token, err := svc.Issue("user_42")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = svc.Verify("not a token at all")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
