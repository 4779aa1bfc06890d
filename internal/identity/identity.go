package identity

import (
	"fmt"
	"time"

	"github.com/classbridge/chatkit/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the subset of the platform's access-token claims the
// client needs: who the local user is, for typing self-exclusion and
// presence, plus expiry.
type AccessClaims struct {
	UserID   int    `json:"user_id"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}

// Identity is the local user as carried by the bearer token.
type Identity struct {
	UserID   int
	FullName string
	Token    string
}

// FromToken extracts the local user from an access token. The token is
// verified by the backend on every request; the client only reads the
// claims, so the signature is not checked here.
func FromToken(token string) (*Identity, error) {
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, domain.ErrExpiredToken
	}

	return &Identity{
		UserID:   claims.UserID,
		FullName: claims.FullName,
		Token:    token,
	}, nil
}
