// Package token inspects bearer tokens on the client side. Tokens are
// opaque credentials as far as the backend contract is concerned; when
// they happen to be JWTs the expiry claim lets rehydration skip a profile
// fetch that is guaranteed to fail.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of access-token claims the client cares about.
type Claims struct {
	Subject string
	Role    string
	Expiry  time.Time
}

// PeekClaims parses a JWT without verifying its signature. Verification is
// the backend's job; the client only reads metadata. Returns ok=false for
// anything that is not a well-formed JWT.
func PeekClaims(raw string) (Claims, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return Claims{}, false
	}

	out := Claims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Time
	}
	return out, true
}

// Expired reports whether raw is a JWT that expired before now. Opaque
// (non-JWT) tokens and JWTs without an exp claim are treated as live and
// left to the backend to reject.
func Expired(raw string, now time.Time) bool {
	claims, ok := PeekClaims(raw)
	if !ok || claims.Expiry.IsZero() {
		return false
	}
	return claims.Expiry.Before(now)
}
