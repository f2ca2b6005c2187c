// Package auth inspects the access tokens the console persists. It never
// verifies signatures: the backend is the authority, the console only reads
// the expiry to avoid a pointless round trip at startup.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway absorbs clock skew between the console host and the backend.
const Leeway = 30 * time.Second

// TokenExpiry returns the exp claim of a JWT access token. ok is false for
// opaque tokens and JWTs without an exp claim.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether token is a JWT whose exp (plus Leeway) is before
// now. Tokens whose expiry cannot be read are never reported expired.
func Expired(token string, now time.Time) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return now.After(exp.Add(Leeway))
}

// BearerHeader formats token for the Authorization header.
func BearerHeader(token string) string {
	return "Bearer " + token
}
