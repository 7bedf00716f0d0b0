// tokenstore/expiry.go
// --------------------
// Expiry inspection for JWT-shaped access tokens. Claims are read without
// signature verification: the client is not the token's audience validator,
// it only wants to know whether a refresh is due before spending a round trip
// on a guaranteed 401.
package tokenstore

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ExpiresAt returns the exp claim of a JWT access token. ok is false when the
// token is not a parseable JWT or carries no expiry.
func ExpiresAt(accessToken string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the token expires within d. Tokens without a
// readable expiry report false; they are refreshed reactively on 401 instead.
func ExpiresWithin(accessToken string, d time.Duration) bool {
	at, ok := ExpiresAt(accessToken)
	if !ok {
		return false
	}
	return time.Until(at) < d
}
