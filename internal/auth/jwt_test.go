package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Secret:          "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func TestGenerateTokenPair(t *testing.T) {
	config := testConfig()

	pair, err := GenerateTokenPair(config, "user-1", "user@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := ValidateToken(config, pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.TokenType)

	claims, err = ValidateToken(config, pair.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, claims.TokenType)
}

func TestValidateTokenRejectsWrongType(t *testing.T) {
	config := testConfig()

	pair, err := GenerateTokenPair(config, "user-1", "user@example.com")
	require.NoError(t, err)

	// A refresh token must not authenticate as an access token.
	_, err = ValidateToken(config, pair.RefreshToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ValidateToken(config, pair.AccessToken, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	config := testConfig()

	token, err := GenerateToken(config, "user-1", "user@example.com", TokenTypeAccess, config.AccessTokenTTL)
	require.NoError(t, err)

	other := config
	other.Secret = "different-secret"
	_, err = ValidateToken(other, token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	config := testConfig()

	token, err := GenerateToken(config, "user-1", "user@example.com", TokenTypeAccess, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(config, token, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateToken(testConfig(), "not.a.token", TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
