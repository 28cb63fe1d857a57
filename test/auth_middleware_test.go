package test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pirate-baby/ATC/internal/checkauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestJWTAuthMiddleware(t *testing.T) {
	t.Run("missing Authorization header returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			rr := doJSON(t, ctx, "GET", "/api/v1/claude-tokens/me", "", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	})

	t.Run("malformed Authorization header returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			rr := doJSON(t, ctx, "GET", "/api/v1/claude-tokens/me", "Basic dXNlcjpwYXNz", nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	})

	t.Run("token signed with the wrong secret returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			claims := jwt.MapClaims{
				"sub": "00000000-0000-0000-0000-000000000001",
				"iat": time.Now().Unix(),
				"exp": time.Now().Add(time.Hour).Unix(),
			}
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			signed, err := token.SignedString([]byte("a-different-secret"))
			require.NoError(t, err)

			rr := doJSON(t, ctx, "GET", "/api/v1/claude-tokens/me", "Bearer "+signed, nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	})

	t.Run("expired token returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			expired, err := checkauth.CreateAccessToken("00000000-0000-0000-0000-000000000001", "ghost", -time.Minute)
			require.NoError(t, err)

			rr := doJSON(t, ctx, "GET", "/api/v1/claude-tokens/me", "Bearer "+expired, nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Contains(t, rr.Body.String(), "expired")
		})
	})

	t.Run("valid token for an unknown user returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			authHeader, err := createAuthHeader("00000000-0000-0000-0000-000000000099", "nobody")
			require.NoError(t, err)

			rr := doJSON(t, ctx, "GET", "/api/v1/claude-tokens/me", authHeader, nil)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	})
}

func TestServiceTokenMiddleware(t *testing.T) {
	t.Run("wrong static token returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			mux := GetTestMux()
			req, err := http.NewRequestWithContext(ctx, "POST", "/internal/v1/claude-tokens/acquire", bytes.NewBuffer(nil))
			require.NoError(t, err)
			req.Header.Set("X-Service-Token", "not-the-token")

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	})

	t.Run("issued service token authenticates via bearer header", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}

			raw := make([]byte, 32)
			_, err := rand.Read(raw)
			require.NoError(t, err)
			tokenString := hex.EncodeToString(raw)

			_, err = dataUtils.CreateAPIToken(DataSetup{
				"TokenHash": checkauth.HashAPIToken(tokenString),
			})
			require.NoError(t, err)

			mux := GetTestMux()
			req, err := http.NewRequestWithContext(ctx, "POST", "/internal/v1/claude-tokens/acquire", bytes.NewBuffer(nil))
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+tokenString)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)
			// Authenticated; the empty pool is what rejects the request
			assert.Equal(t, http.StatusServiceUnavailable, rr.Code, rr.Body.String())
		})
	})

	t.Run("expired issued token returns 401", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}

			tokenString := hex.EncodeToString([]byte("expired-service-token-material"))
			_, err := dataUtils.CreateAPIToken(DataSetup{
				"TokenHash": checkauth.HashAPIToken(tokenString),
				"ExpiresAt": time.Now().UTC().Add(-time.Hour),
			})
			require.NoError(t, err)

			mux := GetTestMux()
			req, err := http.NewRequestWithContext(ctx, "POST", "/internal/v1/claude-tokens/acquire", bytes.NewBuffer(nil))
			require.NoError(t, err)
			req.Header.Set("X-Service-Token", tokenString)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	})
}

func TestAdminSurfaceAuth(t *testing.T) {
	t.Run("non-admin user gets 403", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			user, err := dataUtils.CreateUser(DataSetup{})
			require.NoError(t, err)

			authHeader, err := createAuthHeader(user.UserID, user.Username)
			require.NoError(t, err)

			rr := doJSON(t, ctx, "GET", "/api/v1/admin/claude-tokens", authHeader, nil)
			assert.Equal(t, http.StatusForbidden, rr.Code, rr.Body.String())
		})
	})

	t.Run("admin user can list every token with its owner", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}

			owner, err := dataUtils.CreateUser(DataSetup{"Username": "contributor"})
			require.NoError(t, err)
			_, err = dataUtils.CreateClaudeToken(DataSetup{"UserID": owner.UserID})
			require.NoError(t, err)

			admin, err := dataUtils.CreateUser(DataSetup{"Roles": []string{"user", "admin"}})
			require.NoError(t, err)
			authHeader, err := createAuthHeader(admin.UserID, admin.Username)
			require.NoError(t, err)

			rr := doJSON(t, ctx, "GET", "/api/v1/admin/claude-tokens", authHeader, nil)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), "contributor")
		})
	})

	t.Run("admin snapshot listing without an archive is empty", func(t *testing.T) {
		RunTransactionalTest(t, func(ctx context.Context, tx *gorm.DB) {
			dataUtils := &DataUtils{db: tx}
			admin, err := dataUtils.CreateUser(DataSetup{"Roles": []string{"admin"}})
			require.NoError(t, err)
			authHeader, err := createAuthHeader(admin.UserID, admin.Username)
			require.NoError(t, err)

			rr := doJSON(t, ctx, "GET", "/api/v1/admin/claude-tokens/snapshots", authHeader, nil)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		})
	})
}
