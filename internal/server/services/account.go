package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/audit"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/repomanager"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ProfileView is an identity together with its profile and, when an image
// was uploaded, a presigned URL to fetch it.
type ProfileView struct {
	Identity        *models.Identity
	Profile         *models.Profile
	ProfileImageURL string
}

// AccountService implements profile self-service and administration.
type AccountService struct {
	Deps
}

func NewAccountService(deps Deps) *AccountService {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.With("module", "account")
	return &AccountService{Deps: deps}
}

func targetOrSelf(subject access.Subject, identityID string) string {
	if identityID == "" {
		return subject.ID
	}
	return identityID
}

// GetProfile returns the profile of identityID, or of the subject when empty.
// A profile that is not public is visible only to its owner and admins.
func (s *AccountService) GetProfile(ctx context.Context, subject access.Subject, identityID string) (_ *ProfileView, err error) {
	ctx, done := s.track(ctx, "get_profile")
	defer func() { done(err) }()

	identityID = targetOrSelf(subject, identityID)
	if err := s.authorize(ctx, subject, access.ActionViewProfile, access.Resource{OwnerID: identityID}); err != nil {
		return nil, err
	}

	view, err := s.load(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if identityID != subject.ID && !subject.Role.IsAdmin() && view.Profile.Visibility != models.VisibilityPublic {
		return nil, fmt.Errorf("%w: profile is not public", common.ErrAuthorizationDenied)
	}
	return view, nil
}

func (s *AccountService) load(ctx context.Context, identityID string) (*ProfileView, error) {
	identity, err := s.Repos.Identities().GetByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	profile, err := s.Repos.Profiles().GetByIdentityID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	view := &ProfileView{Identity: identity, Profile: profile}
	if s.Avatars != nil && identity.ProfileImage != "" {
		url, err := s.Avatars.DownloadURL(ctx, identity.ProfileImage)
		if err != nil {
			s.Logger.Warn(ctx, "profile image url failed", "identity_id", identityID, "error", err)
		} else {
			view.ProfileImageURL = url
		}
	}
	return view, nil
}

// UpdateProfile applies a partial update to the subject's own profile and
// personal fields in one unit of work. Role and account flags are never
// changed here.
func (s *AccountService) UpdateProfile(ctx context.Context, subject access.Subject, identityID string, upd ProfileUpdate) (_ *ProfileView, err error) {
	ctx, done := s.track(ctx, "update_profile")
	defer func() { done(err) }()

	identityID = targetOrSelf(subject, identityID)
	if err := s.authorize(ctx, subject, access.ActionEditProfile, access.Resource{OwnerID: identityID}); err != nil {
		return nil, err
	}
	if err := upd.validate(s.Now()); err != nil {
		return nil, err
	}

	now := s.Now()
	err = s.Repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if upd.hasPersonal() {
			identity, err := r.Identities().GetByID(ctx, identityID)
			if err != nil {
				return err
			}
			if err := r.Identities().UpdatePersonal(ctx, identityID, upd.applyPersonal(identity), now); err != nil {
				return err
			}
		}

		profile, err := r.Profiles().GetByIdentityID(ctx, identityID)
		if err != nil {
			return err
		}
		upd.applyProfile(profile)
		profile.UpdatedAt = now
		return r.Profiles().Update(ctx, profile)
	})
	if err != nil {
		return nil, err
	}
	s.touch(ctx, subject)

	s.Audit.Record(ctx, audit.Event{Type: audit.EventProfileUpdated, ActorID: subject.ID, SubjectID: identityID, SessionID: subject.SessionID})
	return s.load(ctx, identityID)
}

// ProfileImageUploadURL stores a fresh object key on the subject's identity
// and returns a presigned URL the client uploads the image to.
func (s *AccountService) ProfileImageUploadURL(ctx context.Context, subject access.Subject) (_ string, err error) {
	ctx, done := s.track(ctx, "profile_image_upload")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionEditProfile, access.Resource{OwnerID: subject.ID}); err != nil {
		return "", err
	}
	if s.Avatars == nil {
		return "", fmt.Errorf("%w: profile images are not configured", common.ErrorInternal)
	}

	key, url, err := s.Avatars.UploadURL(ctx, subject.ID)
	if err != nil {
		return "", err
	}
	if err := s.Repos.Identities().SetProfileImage(ctx, subject.ID, key, s.Now()); err != nil {
		return "", err
	}
	return url, nil
}

// ListUsers lists identities newest first. Limit defaults to
// DefaultListLimit and is capped at MaxListLimit.
func (s *AccountService) ListUsers(ctx context.Context, subject access.Subject, filter models.IdentityFilter) (_ []models.Identity, err error) {
	ctx, done := s.track(ctx, "list_users")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionListUsers, access.Resource{}); err != nil {
		return nil, err
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, common.NewValidationError("role", "unknown role")
	}

	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultListLimit
	case filter.Limit > MaxListLimit:
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return s.Repos.Identities().List(ctx, filter)
}

func (s *AccountService) Statistics(ctx context.Context, subject access.Subject) (_ *models.Statistics, err error) {
	ctx, done := s.track(ctx, "statistics")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionViewStatistics, access.Resource{}); err != nil {
		return nil, err
	}
	return s.Repos.Identities().Statistics(ctx)
}

func (s *AccountService) VerifyUser(ctx context.Context, subject access.Subject, identityID string) (err error) {
	ctx, done := s.track(ctx, "verify_user")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionVerifyUser, access.Resource{OwnerID: identityID}); err != nil {
		return err
	}
	if err := s.Repos.Identities().SetVerified(ctx, identityID, true, s.Now()); err != nil {
		return err
	}

	s.adminEvent(ctx, audit.EventUserVerified, subject, identityID, nil)
	return nil
}

// DeactivateUser disables an identity, revokes its outstanding refresh tokens
// and closes its sessions. Access tokens already issued stay valid until they
// expire, but the kernel denies every action of an inactive subject.
func (s *AccountService) DeactivateUser(ctx context.Context, subject access.Subject, identityID string) (err error) {
	ctx, done := s.track(ctx, "deactivate_user")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionDeactivateUser, access.Resource{OwnerID: identityID}); err != nil {
		return err
	}
	if identityID == subject.ID {
		return common.NewValidationError("identity_id", "cannot deactivate own account")
	}

	if err := s.Repos.Identities().SetActive(ctx, identityID, false, s.Now()); err != nil {
		return err
	}
	if err := s.Issuer.RevokeSubject(ctx, identityID); err != nil {
		return err
	}
	closed, err := s.Sessions.CloseAll(ctx, identityID)
	if err != nil {
		return err
	}
	s.Metrics.SessionsClosed(closed)

	s.adminEvent(ctx, audit.EventUserDeactivated, subject, identityID, map[string]string{"sessions_closed": fmt.Sprint(closed)})
	return nil
}

func (s *AccountService) ActivateUser(ctx context.Context, subject access.Subject, identityID string) (err error) {
	ctx, done := s.track(ctx, "activate_user")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionActivateUser, access.Resource{OwnerID: identityID}); err != nil {
		return err
	}
	if err := s.Repos.Identities().SetActive(ctx, identityID, true, s.Now()); err != nil {
		return err
	}

	s.adminEvent(ctx, audit.EventUserActivated, subject, identityID, nil)
	return nil
}

// ChangeRole is the only way a role changes. Tokens already issued keep the
// role they were minted with until they expire.
func (s *AccountService) ChangeRole(ctx context.Context, subject access.Subject, identityID string, role models.Role) (err error) {
	ctx, done := s.track(ctx, "change_role")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionChangeRole, access.Resource{OwnerID: identityID}); err != nil {
		return err
	}
	if !role.Valid() {
		return common.NewValidationError("role", "unknown role")
	}
	if err := s.Repos.Identities().SetRole(ctx, identityID, role, s.Now()); err != nil {
		return err
	}

	s.adminEvent(ctx, audit.EventRoleChanged, subject, identityID, map[string]string{"role": string(role)})
	return nil
}

// DeleteUser removes an identity and its profile and closes its sessions as
// one unit of work. Session records are kept for audit.
func (s *AccountService) DeleteUser(ctx context.Context, subject access.Subject, identityID string) (err error) {
	ctx, done := s.track(ctx, "delete_user")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionDeleteUser, access.Resource{OwnerID: identityID}); err != nil {
		return err
	}
	if identityID == subject.ID {
		return common.NewValidationError("identity_id", "cannot delete own account")
	}

	var closed int64
	err = s.Repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Profiles().DeleteByIdentityID(ctx, identityID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		n, err := r.Sessions().DeactivateAll(ctx, identityID)
		if err != nil {
			return err
		}
		closed = n
		return r.Identities().Delete(ctx, identityID)
	})
	if err != nil {
		return err
	}
	s.Metrics.SessionsClosed(closed)

	if err := s.Issuer.RevokeSubject(ctx, identityID); err != nil {
		s.Logger.Warn(ctx, "deleted identity tokens not revoked", "identity_id", identityID, "error", err)
	}

	s.adminEvent(ctx, audit.EventUserDeleted, subject, identityID, nil)
	return nil
}

func (s *AccountService) adminEvent(ctx context.Context, typ audit.EventType, subject access.Subject, identityID string, details map[string]string) {
	s.Logger.Info(ctx, "admin action", "type", string(typ), "actor_id", subject.ID, "identity_id", identityID)
	s.Audit.Record(ctx, audit.Event{Type: typ, ActorID: subject.ID, SubjectID: identityID, SessionID: subject.SessionID, Details: details})
}
