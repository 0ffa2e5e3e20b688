// Package tokens mints, validates, refreshes and revokes signed access and
// refresh token pairs.
package tokens

import (
	"time"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// TokenType tags a token as access or refresh so one can never stand in for
// the other.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims is the JWT payload. The role is a snapshot taken at issuance; later
// role changes do not affect tokens already handed out.
type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
	Type TokenType   `json:"typ"`

	// IssuedAtNano is the issuance instant in Unix nanoseconds. The
	// registered iat claim only carries whole seconds.
	IssuedAtNano int64 `json:"iat_ns,omitempty"`
}

// issuedAt returns the issuance instant and the precision it is known to.
// iat_ns is kept to the microsecond, the finest a Postgres timestamp stores.
// Tokens without it fall back to the whole-second iat claim.
func (c *Claims) issuedAt() (time.Time, time.Duration) {
	if c.IssuedAtNano != 0 {
		return time.Unix(0, c.IssuedAtNano).UTC().Truncate(time.Microsecond), time.Microsecond
	}
	if c.IssuedAt == nil {
		return time.Time{}, time.Second
	}
	return c.IssuedAt.Time.UTC(), time.Second
}
