// Package sessions keeps one audit record per login, independent of token
// validity, so users and administrators can see and end active logins.
package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	sessionrepo "github.com/dmitrijs2005/medaccount/internal/server/repositories/sessions"
	"github.com/google/uuid"
)

const sessionKeyBytes = 32

// Registry opens, touches and closes session records. Records are independent
// rows keyed by id, so concurrent opens and closes of one identity need no
// coordination beyond the repository's own.
type Registry struct {
	repo sessionrepo.Repository
	now  func() time.Time
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func NewRegistry(repo sessionrepo.Repository, opts ...Option) *Registry {
	r := &Registry{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open stores a new active session for identity.
func (r *Registry) Open(ctx context.Context, identity *models.Identity, device models.DeviceContext) (*models.Session, error) {
	key, err := common.MakeRandHexString(sessionKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("error generating session key: %w", err)
	}

	now := r.now()
	s := &models.Session{
		ID:           uuid.NewString(),
		IdentityID:   identity.ID,
		SessionKey:   key,
		IPAddress:    device.IPAddress,
		UserAgent:    device.UserAgent,
		DeviceClass:  ClassifyDevice(device.UserAgent),
		Location:     device.Location,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := r.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Touch records activity on an active session.
func (r *Registry) Touch(ctx context.Context, sessionID string) error {
	return r.repo.Touch(ctx, sessionID, r.now())
}

func (r *Registry) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	return r.repo.Get(ctx, sessionID)
}

// Close deactivates a single session. Closing an inactive session is a no-op.
func (r *Registry) Close(ctx context.Context, sessionID string) error {
	return r.repo.Deactivate(ctx, sessionID)
}

// CloseAll deactivates every active session of identityID and returns how many
// were closed. Zero is not an error.
func (r *Registry) CloseAll(ctx context.Context, identityID string) (int64, error) {
	return r.repo.DeactivateAll(ctx, identityID)
}

// List returns every session of identityID, most recent activity first.
func (r *Registry) List(ctx context.Context, identityID string) ([]models.Session, error) {
	return r.repo.ListByIdentity(ctx, identityID)
}

// ActiveCount counts the active sessions in list.
func ActiveCount(list []models.Session) int {
	n := 0
	for _, s := range list {
		if s.IsActive {
			n++
		}
	}
	return n
}
