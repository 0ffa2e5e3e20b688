// Package revocations holds the refresh-token revocation set and the
// per-identity revocation cutoffs.
package revocations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

// Repository must give read-your-writes: a successful Revoke is visible to
// every subsequent IsRevoked call.
type Repository interface {
	// Revoke inserts r if its token id is not yet present and reports whether
	// this call inserted it.
	Revoke(ctx context.Context, r models.Revocation) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// RevokeSubject invalidates every token of identityID issued at or before
	// the given instant. Cutoffs only move forward.
	RevokeSubject(ctx context.Context, identityID string, before time.Time) error
	SubjectCutoff(ctx context.Context, identityID string) (time.Time, bool, error)

	// Purge drops revocations of tokens that expired before now.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
