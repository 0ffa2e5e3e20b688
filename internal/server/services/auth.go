package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/audit"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/medaccount/internal/server/tokens"
	"github.com/google/uuid"
)

// AuthResult is returned by Register and Login. Session is nil after
// registration: a session is only opened by an explicit login.
type AuthResult struct {
	Identity *models.Identity
	Tokens   tokens.TokenPair
	Session  *models.Session
}

// Dashboard summarises the caller's account and recent sessions.
type Dashboard struct {
	Identity       *models.Identity
	RecentSessions []models.Session
	ActiveSessions int
	TotalSessions  int
}

const dashboardRecentSessions = 5

// AuthPolicy holds the orchestrator's tunable behaviour.
type AuthPolicy struct {
	// RevokeOnPasswordChange revokes every outstanding refresh token and
	// closes every session of the identity after a password change.
	RevokeOnPasswordChange bool
}

// AuthService drives the login-session lifecycle. It is safe for concurrent
// use; every method may run concurrently for the same identity.
type AuthService struct {
	Deps
	policy AuthPolicy

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(deps Deps, policy AuthPolicy) *AuthService {
	deps = deps.withDefaults()
	deps.Logger = deps.Logger.With("module", "auth")
	return &AuthService{Deps: deps, policy: policy}
}

// Register creates an identity and its profile in one unit of work and
// returns a fresh token pair. The existence checks are advisory; the store's
// uniqueness constraints decide races.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	ctx, done := s.track(ctx, "register")
	defer func() { done(err) }()

	in.normalize()
	if err := in.validate(s.Now()); err != nil {
		return nil, err
	}
	if err := s.Hasher.ValidateStrength(in.Password, in.Username, in.Email, in.FirstName, in.LastName); err != nil {
		return nil, err
	}

	if err := s.ensureAvailable(ctx, in.Email, in.Username); err != nil {
		return nil, err
	}

	digest, err := s.Hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	identity := &models.Identity{
		ID:             uuid.NewString(),
		Email:          in.Email,
		Username:       in.Username,
		PasswordDigest: digest,
		Role:           in.Role,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		DateOfBirth:    in.DateOfBirth,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.Repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Identities().Create(ctx, identity); err != nil {
			return err
		}
		return r.Profiles().Create(ctx, models.NewProfile(identity.ID, now))
	})
	if err != nil {
		return nil, err
	}

	pair, err := s.Issuer.Issue(identity)
	if err != nil {
		return nil, err
	}

	s.Logger.Info(ctx, "identity registered", "identity_id", identity.ID, "role", string(identity.Role))
	s.Audit.Record(ctx, audit.Event{Type: audit.EventRegistered, ActorID: identity.ID, SubjectID: identity.ID})

	return &AuthResult{Identity: identity, Tokens: pair}, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, username string) error {
	_, err := s.Repos.Identities().GetByEmail(ctx, email)
	switch {
	case err == nil:
		return common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}

	_, err = s.Repos.Identities().GetByUsername(ctx, username)
	switch {
	case err == nil:
		return common.ErrDuplicateUsername
	case !errors.Is(err, common.ErrorNotFound):
		return err
	}
	return nil
}

// dummyVerify spends the same bcrypt work as a real verification so an
// unknown email cannot be told apart from a wrong password by timing.
func (s *AuthService) dummyVerify(ctx context.Context, password string) {
	s.dummyOnce.Do(func() {
		seed, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		s.dummyDigest, _ = s.Hasher.Hash(context.Background(), seed)
	})
	if s.dummyDigest != "" {
		_, _ = s.Hasher.Verify(ctx, s.dummyDigest, password)
	}
}

// Login verifies credentials, records the login, issues tokens and opens a
// session for the calling device. Unknown email and wrong password fail with
// the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string, device models.DeviceContext) (_ *AuthResult, err error) {
	ctx, done := s.track(ctx, "login")
	defer func() { done(err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, &common.ValidationError{Fields: map[string]string{"email": "cannot be blank", "password": "cannot be blank"}}
	}

	identity, err := s.Repos.Identities().GetByEmail(ctx, email)
	if errors.Is(err, common.ErrorNotFound) {
		s.dummyVerify(ctx, password)
		s.loginFailed(ctx, "", device)
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.Hasher.Verify(ctx, identity.PasswordDigest, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.loginFailed(ctx, identity.ID, device)
		return nil, common.ErrInvalidCredentials
	}

	if !identity.IsActive {
		s.loginFailed(ctx, identity.ID, device)
		return nil, common.ErrAccountDisabled
	}

	now := s.Now()
	if err := s.Repos.Identities().RecordLogin(ctx, identity.ID, device.IPAddress, now); err != nil {
		return nil, err
	}
	identity.LastLoginIP = device.IPAddress
	identity.LastLoginAt = &now

	pair, err := s.Issuer.Issue(identity)
	if err != nil {
		return nil, err
	}

	session, err := s.Sessions.Open(ctx, identity, device)
	if err != nil {
		return nil, err
	}
	s.Metrics.SessionsOpened(1)

	s.Logger.Info(ctx, "login succeeded", "identity_id", identity.ID, "session_id", session.ID, "device", string(session.DeviceClass))
	s.Audit.Record(ctx, audit.Event{
		Type:      audit.EventLoginSucceeded,
		ActorID:   identity.ID,
		SubjectID: identity.ID,
		SessionID: session.ID,
		IPAddress: device.IPAddress,
		Details:   map[string]string{"device": string(session.DeviceClass)},
	})

	return &AuthResult{Identity: identity, Tokens: pair, Session: session}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, identityID string, device models.DeviceContext) {
	s.Audit.Record(ctx, audit.Event{Type: audit.EventLoginFailed, SubjectID: identityID, IPAddress: device.IPAddress})
}

// Refresh exchanges a refresh token for new tokens. Sessions are not touched.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ tokens.TokenPair, err error) {
	ctx, done := s.track(ctx, "refresh")
	defer func() { done(err) }()

	pair, err := s.Issuer.Refresh(ctx, refreshToken)
	if err != nil {
		return tokens.TokenPair{}, err
	}

	s.Audit.Record(ctx, audit.Event{Type: audit.EventTokenRefreshed})
	return pair, nil
}

// Logout revokes the presented refresh token and closes every active session
// of the subject. Revocation is best effort; both steps are always attempted
// and the call fails only when the sessions could not be closed. An inactive
// subject is denied; deactivation has already closed its sessions.
func (s *AuthService) Logout(ctx context.Context, subject access.Subject, refreshToken string) (err error) {
	ctx, done := s.track(ctx, "logout")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionLogout, access.Resource{OwnerID: subject.ID}); err != nil {
		return err
	}

	revoked := s.revokeForLogout(ctx, subject, refreshToken)

	closed, err := s.Sessions.CloseAll(ctx, subject.ID)
	if err != nil {
		s.Logger.Error(ctx, "logout failed to close sessions", "identity_id", subject.ID, "token_revoked", revoked, "error", err)
		return err
	}
	s.Metrics.SessionsClosed(closed)

	s.Logger.Info(ctx, "logged out", "identity_id", subject.ID, "sessions_closed", closed, "token_revoked", revoked)
	s.Audit.Record(ctx, audit.Event{
		Type:      audit.EventLoggedOut,
		ActorID:   subject.ID,
		SubjectID: subject.ID,
		SessionID: subject.SessionID,
		Details:   map[string]string{"sessions_closed": fmt.Sprint(closed), "token_revoked": fmt.Sprint(revoked)},
	})
	return nil
}

func (s *AuthService) revokeForLogout(ctx context.Context, subject access.Subject, refreshToken string) bool {
	claims, err := s.Issuer.ParseRefresh(refreshToken)
	if err != nil {
		s.Logger.Warn(ctx, "logout proceeds without revoking refresh token", "identity_id", subject.ID, "error", err)
		return false
	}
	if claims.IdentityID() != subject.ID {
		s.Logger.Warn(ctx, "logout refresh token belongs to another identity", "identity_id", subject.ID)
		return false
	}
	if err := s.Issuer.Revoke(ctx, refreshToken); err != nil {
		s.Logger.Warn(ctx, "logout failed to revoke refresh token", "identity_id", subject.ID, "error", err)
		return false
	}
	return true
}

// ChangePassword replaces the subject's password after verifying the current
// one. Outstanding tokens and sessions survive unless the policy says
// otherwise.
func (s *AuthService) ChangePassword(ctx context.Context, subject access.Subject, oldPassword, newPassword string) (err error) {
	ctx, done := s.track(ctx, "change_password")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionChangePassword, access.Resource{OwnerID: subject.ID}); err != nil {
		return err
	}
	if newPassword == "" {
		return common.NewValidationError("new_password", "cannot be blank")
	}

	identity, err := s.Repos.Identities().GetByID(ctx, subject.ID)
	if err != nil {
		return err
	}

	ok, err := s.Hasher.Verify(ctx, identity.PasswordDigest, oldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInvalidCredentials
	}

	if err := s.Hasher.ValidateStrength(newPassword, identity.Username, identity.Email, identity.FirstName, identity.LastName); err != nil {
		return err
	}

	digest, err := s.Hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}
	if err := s.Repos.Identities().UpdatePassword(ctx, identity.ID, digest, s.Now()); err != nil {
		return err
	}

	if s.policy.RevokeOnPasswordChange {
		if err := s.Issuer.RevokeSubject(ctx, identity.ID); err != nil {
			return err
		}
		closed, err := s.Sessions.CloseAll(ctx, identity.ID)
		if err != nil {
			return err
		}
		s.Metrics.SessionsClosed(closed)
	} else {
		s.touch(ctx, subject)
	}

	s.Logger.Info(ctx, "password changed", "identity_id", identity.ID, "revoked", s.policy.RevokeOnPasswordChange)
	s.Audit.Record(ctx, audit.Event{Type: audit.EventPasswordChanged, ActorID: subject.ID, SubjectID: identity.ID, SessionID: subject.SessionID})
	return nil
}

// ListSessions returns the subject's sessions, most recent activity first.
func (s *AuthService) ListSessions(ctx context.Context, subject access.Subject) (_ []models.Session, err error) {
	ctx, done := s.track(ctx, "list_sessions")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionListSessions, access.Resource{OwnerID: subject.ID}); err != nil {
		return nil, err
	}
	s.touch(ctx, subject)

	return s.Sessions.List(ctx, subject.ID)
}

// RevokeSession closes one session. Only its owner or an admin may do so.
func (s *AuthService) RevokeSession(ctx context.Context, subject access.Subject, sessionID string) (err error) {
	ctx, done := s.track(ctx, "revoke_session")
	defer func() { done(err) }()

	target, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, subject, access.ActionRevokeSession, access.Resource{OwnerID: target.IdentityID}); err != nil {
		return err
	}

	if err := s.Sessions.Close(ctx, target.ID); err != nil {
		return err
	}
	if target.IsActive {
		s.Metrics.SessionsClosed(1)
	}
	s.touch(ctx, subject)

	s.Audit.Record(ctx, audit.Event{Type: audit.EventSessionRevoked, ActorID: subject.ID, SubjectID: target.IdentityID, SessionID: target.ID})
	return nil
}

// Dashboard returns the subject's identity with its most recent active
// sessions and session counts.
func (s *AuthService) Dashboard(ctx context.Context, subject access.Subject) (_ *Dashboard, err error) {
	ctx, done := s.track(ctx, "dashboard")
	defer func() { done(err) }()

	if err := s.authorize(ctx, subject, access.ActionViewProfile, access.Resource{OwnerID: subject.ID}); err != nil {
		return nil, err
	}
	s.touch(ctx, subject)

	identity, err := s.Repos.Identities().GetByID(ctx, subject.ID)
	if err != nil {
		return nil, err
	}
	list, err := s.Sessions.List(ctx, subject.ID)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Identity: identity, TotalSessions: len(list)}
	for _, sess := range list {
		if !sess.IsActive {
			continue
		}
		d.ActiveSessions++
		if len(d.RecentSessions) < dashboardRecentSessions {
			d.RecentSessions = append(d.RecentSessions, sess)
		}
	}
	return d, nil
}

// Authenticate turns an access token into an authorization subject. The role
// comes from the token; the active and verified flags are read from the
// store. A deleted identity yields an inactive subject.
func (s *AuthService) Authenticate(ctx context.Context, accessToken, sessionID string) (access.Subject, error) {
	claims, err := s.Issuer.ValidateAccess(accessToken)
	if err != nil {
		return access.Subject{}, err
	}

	subject := access.Subject{ID: claims.IdentityID(), Role: claims.Role, SessionID: sessionID}

	identity, err := s.Repos.Identities().GetByID(ctx, subject.ID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return subject, nil
	case err != nil:
		return access.Subject{}, err
	}

	subject.Active = identity.IsActive
	subject.Verified = identity.IsVerified
	return subject, nil
}

// Authorize exposes the access kernel to other services.
func (s *AuthService) Authorize(ctx context.Context, subject access.Subject, action access.Action, resource access.Resource) access.Decision {
	decision := access.Authorize(subject, action, resource)
	if !decision.Allowed {
		s.Logger.Debug(ctx, "authorization denied", "identity_id", subject.ID, "action", string(action), "reason", decision.Reason)
	}
	return decision
}
