package models

import "time"

// Revocation marks one refresh token (by its jti) as no longer usable.
// ExpiresAt mirrors the token expiry so stale rows can be purged.
type Revocation struct {
	TokenID    string
	IdentityID string
	ExpiresAt  time.Time
	RevokedAt  time.Time
}
