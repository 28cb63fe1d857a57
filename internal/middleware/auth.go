package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/pirate-baby/ATC/internal/checkauth"
	"github.com/pirate-baby/ATC/internal/config"
	"github.com/pirate-baby/ATC/internal/store"
	"github.com/pirate-baby/ATC/internal/store/models"
)

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status == http.StatusForbidden {
		w.Write([]byte(`{"error":"forbidden","message":"` + message + `"}`))
		return
	}
	w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}

// bearerToken extracts the credential from an Authorization header
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", false
	}
	return token, true
}

// JWTAuthMiddleware creates middleware that authenticates the public surface.
// A bearer JWT from the main backend names the user in its sub claim; the
// user row must exist here before any token operation.
func JWTAuthMiddleware(appStore store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Missing or malformed Authorization header. Use: Bearer <token>")
				return
			}

			claims, err := checkauth.VerifyAccessToken(token)
			if err != nil {
				if errors.Is(err, checkauth.ErrTokenExpired) {
					writeAuthError(w, http.StatusUnauthorized, "Token expired")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			user, err := appStore.GetUserByID(r.Context(), claims.UserID)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Unknown user")
				return
			}

			ctx := checkauth.SetUserContext(r.Context(), user)
			ctx = checkauth.SetVerifiedContext(ctx, true)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceTokenMiddleware creates middleware that authenticates the internal
// surface. Executors present either the static service token from config or
// a database-backed service token, via X-Service-Token or a bearer header.
func ServiceTokenMiddleware(appStore store.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Service-Token")
			if token == "" {
				token, _ = bearerToken(r)
			}
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Missing service token")
				return
			}

			// Static deployment-wide token first
			if config.ServiceToken != "" &&
				subtle.ConstantTimeCompare([]byte(token), []byte(config.ServiceToken)) == 1 {
				ctx := checkauth.SetVerifiedContext(r.Context(), true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// Fall back to issued service tokens
			_, user, err := appStore.ValidateAPIToken(r.Context(), token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired service token")
				return
			}

			ctx := checkauth.SetUserContext(r.Context(), user)
			ctx = checkauth.SetVerifiedContext(ctx, true)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoleMiddleware creates middleware that checks if the authenticated user has a required role
func RequireRoleMiddleware(role models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := checkauth.GetUserFromContext(r.Context())
			if user == nil {
				writeAuthError(w, http.StatusUnauthorized, "User not authenticated")
				return
			}

			if !user.HasRole(role) {
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions. Requires role: "+string(role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
