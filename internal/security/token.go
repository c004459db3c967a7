package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("session token is not a JWT")

// SessionClaims are the fields the authorization service puts in its login
// token.
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ParseSessionToken decodes the login token without verifying it. The
// signing key stays with the service, so the claims are only good for
// display (who, which role, when the server session lapses) and never for an
// authorization decision.
func ParseSessionToken(tokenStr string) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, ErrNotJWT
	}
	claims := &SessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return claims, nil
}

// ExpiresAtTime returns the token expiry, if the token carries one.
func (c *SessionClaims) ExpiresAtTime() (time.Time, bool) {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}, false
	}
	return c.ExpiresAt.Time, true
}
