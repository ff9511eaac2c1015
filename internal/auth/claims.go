package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedToken is returned when an access token cannot be decoded.
var ErrMalformedToken = errors.New("auth: malformed token")

// Claims are the access-token fields the client reads.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseClaims decodes token without verifying its signature. The client
// never holds the signing key; the backend remains the authority.
func ParseClaims(token string) (*Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	c := &Claims{Subject: tc.Subject, Email: tc.Email, Role: tc.Role}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Expired reports whether the claims carry an expiry that has passed at now,
// allowing for leeway. Tokens without exp never expire.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(c.ExpiresAt)
}

// TokenExpired reports whether token is past its expiry. Tokens that cannot
// be decoded are treated as not expired and left for the backend to reject.
func TokenExpired(token string, now time.Time, leeway time.Duration) bool {
	c, err := ParseClaims(token)
	if err != nil {
		return false
	}
	return c.Expired(now, leeway)
}
