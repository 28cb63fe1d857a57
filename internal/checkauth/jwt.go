package checkauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pirate-baby/ATC/internal/config"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims are the fields this service reads out of a verified bearer
// token. The main backend mints the tokens; sub carries the user id.
type AccessClaims struct {
	UserID   string
	Username string
}

// VerifyAccessToken parses an HS256 bearer token against the shared JWT
// secret and returns its claims. Issuer and audience are only enforced when
// configured.
func VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(config.JwtSecret), nil
	}, parseOptions()...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}

	access := &AccessClaims{UserID: sub}
	if username, ok := claims["username"].(string); ok {
		access.Username = username
	}
	return access, nil
}

func parseOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if config.JwtIssuer != "" {
		opts = append(opts, jwt.WithIssuer(config.JwtIssuer))
	}
	if config.JwtAudience != "" {
		opts = append(opts, jwt.WithAudience(config.JwtAudience))
	}
	return opts
}

// CreateAccessToken mints an HS256 bearer token with the shared secret.
// Production tokens come from the main backend; this path serves the token
// CLI and tests.
func CreateAccessToken(userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	if config.JwtIssuer != "" {
		claims["iss"] = config.JwtIssuer
	}
	if config.JwtAudience != "" {
		claims["aud"] = config.JwtAudience
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.JwtSecret))
}
