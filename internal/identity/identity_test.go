package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/chatkit/internal/domain"
)

func signedToken(t *testing.T, claims AccessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestFromTokenExtractsClaims(t *testing.T) {
	token := signedToken(t, AccessClaims{
		UserID:   42,
		FullName: "Ada Teacher",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	self, err := FromToken(token)
	require.NoError(t, err)
	require.Equal(t, 42, self.UserID)
	require.Equal(t, "Ada Teacher", self.FullName)
	require.Equal(t, token, self.Token)
}

func TestFromTokenRejectsExpired(t *testing.T) {
	token := signedToken(t, AccessClaims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := FromToken(token)
	require.ErrorIs(t, err, domain.ErrExpiredToken)
}

func TestFromTokenRejectsEmpty(t *testing.T) {
	_, err := FromToken("")
	require.ErrorIs(t, err, domain.ErrMissingToken)
}

func TestFromTokenRejectsGarbage(t *testing.T) {
	_, err := FromToken("not-a-jwt")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
