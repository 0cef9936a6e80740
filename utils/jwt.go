package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cppla/rewards/config"
)

// Claims are the bearer token claims issued by the auth service.
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token. Production tokens come from the auth service; this is
// used by tooling and tests that need a token the middleware accepts.
func SignToken(secret []byte, userID uint, username string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GenerateToken signs a token with the configured secret.
func GenerateToken(userID uint, username string, duration time.Duration) (string, error) {
	return SignToken([]byte(config.Get().JWTSecret), userID, username, duration)
}

// TokenParser validates a token string and returns its claims.
type TokenParser func(tokenStr string) (*Claims, error)

// NewTokenParser returns a parser accepting HMAC tokens signed with secret.
func NewTokenParser(secret []byte) TokenParser {
	return func(tokenStr string) (*Claims, error) {
		parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil {
			return nil, err
		}
		claims, ok := parsed.Claims.(*Claims)
		if !ok || !parsed.Valid || claims.UserID == 0 {
			return nil, errors.New("invalid token claims")
		}
		return claims, nil
	}
}

// ParseToken validates a token with the configured secret.
func ParseToken(tokenStr string) (*Claims, error) {
	return NewTokenParser([]byte(config.Get().JWTSecret))(tokenStr)
}
