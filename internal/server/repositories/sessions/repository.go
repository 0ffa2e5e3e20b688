// Package sessions stores login session records. Rows are never deleted;
// closing a session only clears its active flag.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)

	// Touch moves last_activity forward on an active session. Inactive or
	// missing sessions yield common.ErrorNotFound.
	Touch(ctx context.Context, id string, at time.Time) error

	Deactivate(ctx context.Context, id string) error

	// DeactivateAll closes every active session of identityID and reports
	// how many were closed.
	DeactivateAll(ctx context.Context, identityID string) (int64, error)

	// ListByIdentity returns sessions ordered by last_activity, newest first.
	ListByIdentity(ctx context.Context, identityID string) ([]models.Session, error)
}
