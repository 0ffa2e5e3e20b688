// Package profiles stores the one-to-one profile attached to each identity.
package profiles

import (
	"context"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByIdentityID(ctx context.Context, identityID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	DeleteByIdentityID(ctx context.Context, identityID string) error
}
