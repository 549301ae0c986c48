package users

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/eventhub/internal/shared"
)

func fixedTokens(now time.Time, ttl time.Duration) *ActivationTokens {
	tokens := NewActivationTokens("activation-secret", ttl)
	tokens.now = func() time.Time { return now }
	return tokens
}

func TestActivationTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens := fixedTokens(now, time.Hour)
	identity := Identity{ID: 42, Email: "a@example.com", PasswordHash: "hash"}

	token, err := tokens.Make(identity)
	require.NoError(t, err)
	assert.NoError(t, tokens.Verify(identity, token))
}

func TestActivationTokenRejectedAfterActivation(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens := fixedTokens(now, time.Hour)
	identity := Identity{ID: 42, Email: "a@example.com", PasswordHash: "hash"}

	token, err := tokens.Make(identity)
	require.NoError(t, err)

	identity.IsActive = true
	err = tokens.Verify(identity, token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestActivationTokenRejectedAfterPasswordChange(t *testing.T) {
	tokens := fixedTokens(time.Now(), time.Hour)
	identity := Identity{ID: 7, PasswordHash: "old"}
	token, err := tokens.Make(identity)
	require.NoError(t, err)

	identity.PasswordHash = "new"
	assert.ErrorIs(t, tokens.Verify(identity, token), shared.ErrInvalidToken)
}

func TestActivationTokenExpires(t *testing.T) {
	issued := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	tokens := fixedTokens(issued, time.Hour)
	identity := Identity{ID: 1}
	token, err := tokens.Make(identity)
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Hour) }
	err = tokens.Verify(identity, token)
	assert.ErrorIs(t, err, shared.ErrInvalidToken)
}

func TestActivationTokenBoundToUser(t *testing.T) {
	tokens := fixedTokens(time.Now(), time.Hour)
	token, err := tokens.Make(Identity{ID: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, tokens.Verify(Identity{ID: 2}, token), shared.ErrInvalidToken)
}

func TestActivationTokenRejectsForeignSecretAndGarbage(t *testing.T) {
	identity := Identity{ID: 3}
	other := NewActivationTokens("other-secret", time.Hour)
	token, err := other.Make(identity)
	require.NoError(t, err)

	tokens := NewActivationTokens("activation-secret", time.Hour)
	for _, candidate := range []string{token, "", "not-a-jwt"} {
		err := tokens.Verify(identity, candidate)
		assert.True(t, errors.Is(err, shared.ErrInvalidToken), "token %q", candidate)
	}
}

func TestNewActivationTokensDefaultsTTL(t *testing.T) {
	tokens := NewActivationTokens("s", 0)
	assert.Equal(t, 72*time.Hour, tokens.ttl)
}
