// Package services implements the account operations: the auth orchestrator
// that drives registration, login, refresh, logout and password changes, and
// the profile and administration operations built on the same kernel.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/logging"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/audit"
	"github.com/dmitrijs2005/medaccount/internal/server/metrics"
	"github.com/dmitrijs2005/medaccount/internal/server/password"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/medaccount/internal/server/sessions"
	"github.com/dmitrijs2005/medaccount/internal/server/tokens"
	"go.opentelemetry.io/otel/codes"
)

// AvatarStore hands out presigned profile-image URLs.
type AvatarStore interface {
	UploadURL(ctx context.Context, identityID string) (key string, url string, err error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Deps are the collaborators shared by AuthService and AccountService.
// Audit, Metrics, Avatars and Now are optional.
type Deps struct {
	Repos    repomanager.RepositoryManager
	Hasher   password.Hasher
	Issuer   *tokens.Issuer
	Sessions *sessions.Registry
	Avatars  AvatarStore
	Audit    *audit.Recorder
	Metrics  *metrics.Metrics
	Logger   logging.Logger
	Now      func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	return d
}

// track opens a span and returns the function that closes it and records the
// operation's outcome.
func (d Deps) track(ctx context.Context, op string) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := d.Metrics.Start(ctx, "AccountService."+op)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		d.Metrics.Observe(op, started, err)
	}
}

// authorize consults the access kernel and records denials.
func (d Deps) authorize(ctx context.Context, subject access.Subject, action access.Action, resource access.Resource) error {
	decision := access.Authorize(subject, action, resource)
	if decision.Allowed {
		return nil
	}

	d.Audit.Record(ctx, audit.Event{
		Type:      audit.EventAccessDenied,
		ActorID:   subject.ID,
		SubjectID: resource.OwnerID,
		SessionID: subject.SessionID,
		Details:   map[string]string{"action": string(action), "reason": decision.Reason},
	})
	return fmt.Errorf("%w: %s", common.ErrAuthorizationDenied, decision.Reason)
}

// touch records activity on the caller's session. It is best effort and only
// touches a session owned by the caller.
func (d Deps) touch(ctx context.Context, subject access.Subject) {
	if subject.SessionID == "" {
		return
	}

	s, err := d.Sessions.Get(ctx, subject.SessionID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			d.Logger.Warn(ctx, "session lookup failed", "session_id", subject.SessionID, "error", err)
		}
		return
	}
	if s.IdentityID != subject.ID || !s.IsActive {
		return
	}

	if err := d.Sessions.Touch(ctx, s.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
		d.Logger.Warn(ctx, "session touch failed", "session_id", s.ID, "error", err)
	}
}
