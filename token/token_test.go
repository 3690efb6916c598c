package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/agrimandi/agrimandi-go/token"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestPeekClaims(t *testing.T) {
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, jwt.MapClaims{
		"sub":  "u1",
		"role": "farmer",
		"exp":  expiry.Unix(),
	})

	claims, ok := token.PeekClaims(raw)
	require.True(t, ok)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "farmer", claims.Role)
	require.Equal(t, expiry.Unix(), claims.Expiry.Unix())
}

func TestPeekClaimsRejectsOpaqueToken(t *testing.T) {
	_, ok := token.PeekClaims("not-a-jwt")
	require.False(t, ok)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	live := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	expired := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	noExpiry := signedToken(t, jwt.MapClaims{"sub": "u1"})

	require.False(t, token.Expired(live, now))
	require.True(t, token.Expired(expired, now))

	// Tokens the client cannot interpret are left to the backend.
	require.False(t, token.Expired(noExpiry, now))
	require.False(t, token.Expired("opaque-token", now))
}
