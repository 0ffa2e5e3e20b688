// Package identities stores account identities: credentials, role and flags.
package identities

import (
	"context"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

// Repository is the identity part of the credential store. Create enforces
// email and username uniqueness and fails with common.ErrDuplicateEmail or
// common.ErrDuplicateUsername. Lookups and updates of a missing identity fail
// with common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, identity *models.Identity) error
	GetByID(ctx context.Context, id string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	GetByUsername(ctx context.Context, username string) (*models.Identity, error)

	UpdatePassword(ctx context.Context, id, digest string, at time.Time) error
	RecordLogin(ctx context.Context, id, ip string, at time.Time) error
	UpdatePersonal(ctx context.Context, id string, fields models.PersonalFields, at time.Time) error
	SetProfileImage(ctx context.Context, id, key string, at time.Time) error
	SetVerified(ctx context.Context, id string, verified bool, at time.Time) error
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
	SetRole(ctx context.Context, id string, role models.Role, at time.Time) error
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, filter models.IdentityFilter) ([]models.Identity, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
}
