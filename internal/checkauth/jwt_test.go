package checkauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withJwtSecret(t *testing.T, secret string) {
	t.Helper()
	previous := config.JwtSecret
	config.JwtSecret = secret
	t.Cleanup(func() { config.JwtSecret = previous })
}

func TestAccessTokenRoundTrip(t *testing.T) {
	withJwtSecret(t, "unit-test-secret")

	tokenString, err := CreateAccessToken("user-123", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyAccessToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	withJwtSecret(t, "unit-test-secret")

	tokenString, err := CreateAccessToken("user-123", "alice", -time.Minute)
	require.NoError(t, err)

	_, err = VerifyAccessToken(tokenString)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccessTokenRejectsBadInput(t *testing.T) {
	withJwtSecret(t, "unit-test-secret")

	t.Run("garbage", func(t *testing.T) {
		_, err := VerifyAccessToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-123",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := forged.SignedString([]byte("some-other-secret"))
		require.NoError(t, err)

		_, err = VerifyAccessToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
			"sub": "user-123",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = VerifyAccessToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := token.SignedString([]byte(config.JwtSecret))
		require.NoError(t, err)

		_, err = VerifyAccessToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-123",
		})
		tokenString, err := token.SignedString([]byte(config.JwtSecret))
		require.NoError(t, err)

		_, err = VerifyAccessToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAPITokenHashing(t *testing.T) {
	hash := HashAPIToken("service-token-value")
	assert.Len(t, hash, 32)

	assert.True(t, ValidateAPIToken("service-token-value", hash))
	assert.False(t, ValidateAPIToken("different-token", hash))
	assert.False(t, ValidateAPIToken("service-token-value", []byte("short")))
}
