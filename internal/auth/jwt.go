package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the JWT payload for access tokens. Token issuance lives in
// the main Lark backend; this module only validates.
type Claims struct {
	UserID int64 `json:"user_id,string"`
	jwt.RegisteredClaims
}

// TokenService validates JWT access tokens issued by the auth backend.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given HMAC secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret)}
}

// ValidateAccessToken parses and validates a JWT, returning the claims.
func (ts *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
