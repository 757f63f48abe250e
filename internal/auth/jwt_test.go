package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/victrola-bridge/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:                "test-secret-test-secret-test-secret!",
		JWTAccessTokenExpirySec:  3600,
		JWTRefreshTokenExpirySec: 86400,
	}
}

func TestGenerateAndVerifyTokenPair(t *testing.T) {
	cfg := testConfig()

	tokens, err := GenerateTokenPair(cfg, TokenPayload{Sub: "dev-1", DeviceName: "Phone"})
	require.NoError(t, err)
	assert.Equal(t, 3600, tokens.ExpiresInSec)

	payload, err := VerifyToken(cfg, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", payload.Sub)
	assert.Equal(t, "Phone", payload.DeviceName)
	assert.Equal(t, TokenTypeAccess, payload.Type)

	payload, err = VerifyToken(cfg, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, payload.Type)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	cfg := testConfig()
	tokens, err := GenerateTokenPair(cfg, TokenPayload{Sub: "dev-1", DeviceName: "Phone"})
	require.NoError(t, err)

	other := cfg
	other.JWTSecret = "another-secret-another-secret-another!"
	_, err = VerifyToken(other, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshAccessTokenRejectsAccessToken(t *testing.T) {
	cfg := testConfig()
	tokens, err := GenerateTokenPair(cfg, TokenPayload{Sub: "dev-1", DeviceName: "Phone"})
	require.NoError(t, err)

	_, _, err = RefreshAccessToken(cfg, tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenType)
}

func TestPairingStoreClaimConsumesCode(t *testing.T) {
	store := NewPairingStore(time.Minute)

	code, err := store.Create("req-1")
	require.NoError(t, err)
	require.Len(t, code, 6)

	assert.ErrorIs(t, store.Claim("000000"), ErrPairCodeInvalid)
	require.NoError(t, store.Claim(code))
	// One-shot: a claimed code cannot be replayed.
	assert.ErrorIs(t, store.Claim(code), ErrPairCodeInvalid)
}

func TestPairingStoreNewCodeRevokesPrevious(t *testing.T) {
	store := NewPairingStore(time.Minute)

	first, err := store.Create("req-1")
	require.NoError(t, err)
	second, err := store.Create("req-2")
	require.NoError(t, err)
	if first == second {
		t.Skip("random codes collided")
	}

	assert.ErrorIs(t, store.Claim(first), ErrPairCodeInvalid)
	require.NoError(t, store.Claim(second))
}

func TestPairingStoreExpiry(t *testing.T) {
	store := NewPairingStore(-time.Second)

	code, err := store.Create("req-1")
	require.NoError(t, err)

	assert.ErrorIs(t, store.Claim(code), ErrPairCodeExpired)
	// The expired code is spent, not retryable.
	assert.ErrorIs(t, store.Claim(code), ErrPairCodeInvalid)
}
