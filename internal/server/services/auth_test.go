package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/metrics"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/sessions"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_RegisterLoginLogout(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()

	reg := h.register(t, "a@x.com", "alice")
	assert.Nil(t, reg.Session)
	assert.Equal(t, models.RolePatient, reg.Identity.Role)
	assert.True(t, reg.Identity.IsActive)
	assert.False(t, reg.Identity.IsVerified)

	profile, err := h.repos.Profiles().GetByIdentityID(ctx, reg.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, profile.Visibility)

	login := h.login(t, "A@X.com")
	require.NotNil(t, login.Session)
	assert.NotEmpty(t, login.Tokens.AccessToken)
	assert.NotEmpty(t, login.Tokens.RefreshToken)
	assert.Equal(t, "10.1.1.1", login.Identity.LastLoginIP)

	subject := h.subject(t, login)
	list, err := h.auth.ListSessions(ctx, subject)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsActive)

	require.NoError(t, h.auth.Logout(ctx, subject, login.Tokens.RefreshToken))

	_, err = h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)

	list, err = h.auth.ListSessions(ctx, subject)
	require.NoError(t, err)
	assert.Zero(t, sessions.ActiveCount(list))

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Operations.WithLabelValues("logout", metrics.ResultOK)))
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	h := newHarness(t, AuthPolicy{})

	const workers = 12
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		dupes     atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.auth.Register(context.Background(), RegisterInput{
				Email: "same@x.com", Username: fmt.Sprintf("user%d", i),
				Password: testPassword, PasswordConfirm: testPassword,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, common.ErrDuplicateEmail):
				dupes.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), dupes.Load())
}

func TestRegister_Duplicates(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	h.register(t, "a@x.com", "alice")

	_, err := h.auth.Register(context.Background(), RegisterInput{Email: " A@x.com ", Username: "other", Password: testPassword, PasswordConfirm: testPassword})
	assert.ErrorIs(t, err, common.ErrDuplicateEmail)

	_, err = h.auth.Register(context.Background(), RegisterInput{Email: "b@x.com", Username: "alice", Password: testPassword, PasswordConfirm: testPassword})
	assert.ErrorIs(t, err, common.ErrDuplicateUsername)
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing email", RegisterInput{Username: "bob", Password: testPassword, PasswordConfirm: testPassword}, "email"},
		{"bad email", RegisterInput{Email: "nope", Username: "bob", Password: testPassword, PasswordConfirm: testPassword}, "email"},
		{"bad username", RegisterInput{Email: "b@x.com", Username: "bob smith", Password: testPassword, PasswordConfirm: testPassword}, "username"},
		{"confirmation mismatch", RegisterInput{Email: "b@x.com", Username: "bob", Password: testPassword, PasswordConfirm: "other"}, "password_confirm"},
		{"admin not self-assignable", RegisterInput{Email: "b@x.com", Username: "bob", Password: testPassword, PasswordConfirm: testPassword, Role: models.RoleAdmin}, "role"},
		{"bad phone", RegisterInput{Email: "b@x.com", Username: "bob", Password: testPassword, PasswordConfirm: testPassword, Phone: "call me"}, "phone"},
		{"birth in future", RegisterInput{Email: "b@x.com", Username: "bob", Password: testPassword, PasswordConfirm: testPassword, DateOfBirth: &future}, "date_of_birth"},
		{"weak password", RegisterInput{Email: "b@x.com", Username: "bob", Password: "password123", PasswordConfirm: "password123"}, "password"},
		{"password like username", RegisterInput{Email: "b@x.com", Username: "kowalski", Password: "kowalski-77", PasswordConfirm: "kowalski-77"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Register(context.Background(), tt.in)
			require.ErrorIs(t, err, common.ErrValidation)

			var verr *common.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	stats, err := h.repos.Identities().Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestRegister_DoctorRole(t *testing.T) {
	h := newHarness(t, AuthPolicy{})

	res, err := h.auth.Register(context.Background(), RegisterInput{
		Email: "doc@x.com", Username: "drhouse", Password: testPassword, PasswordConfirm: testPassword,
		FirstName: "Gregory", LastName: "House", Phone: "+15551234567", Role: models.RoleDoctor,
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, res.Identity.Role)

	claims, err := h.auth.Issuer.ValidateAccess(res.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDoctor, claims.Role)
}

func TestLogin_EnumerationResistance(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	h.register(t, "a@x.com", "alice")
	device := models.DeviceContext{IPAddress: "10.0.0.9"}

	_, wrongPassword := h.auth.Login(context.Background(), "a@x.com", "Not-The-Password-1", device)
	_, unknownEmail := h.auth.Login(context.Background(), "ghost@x.com", testPassword, device)

	require.ErrorIs(t, wrongPassword, common.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestLogin_DisabledAccount(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	reg := h.register(t, "a@x.com", "alice")
	require.NoError(t, h.repos.Identities().SetActive(ctx, reg.Identity.ID, false, h.clock.Now()))

	_, err := h.auth.Login(ctx, "a@x.com", testPassword, models.DeviceContext{})
	assert.ErrorIs(t, err, common.ErrAccountDisabled)

	_, err = h.auth.Login(ctx, "a@x.com", "Wrong-Password-9", models.DeviceContext{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	list, err := h.repos.Sessions().ListByIdentity(ctx, reg.Identity.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLogin_Validation(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	_, err := h.auth.Login(context.Background(), "", "", models.DeviceContext{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLogin_ConcurrentDevices(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	reg := h.register(t, "a@x.com", "alice")

	var wg sync.WaitGroup
	agents := []string{"iPhone Mobile", "iPad Tablet", "Linux Desktop"}
	for _, ua := range agents {
		wg.Add(1)
		go func(ua string) {
			defer wg.Done()
			_, err := h.auth.Login(context.Background(), "a@x.com", testPassword, models.DeviceContext{UserAgent: ua})
			assert.NoError(t, err)
		}(ua)
	}
	wg.Wait()

	list, err := h.repos.Sessions().ListByIdentity(context.Background(), reg.Identity.ID)
	require.NoError(t, err)
	assert.Len(t, list, len(agents))
	assert.Equal(t, len(agents), sessions.ActiveCount(list))
}

func TestRefresh_RotatesAndLeavesSessionsAlone(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	login := h.login(t, "a@x.com")

	before, err := h.repos.Sessions().Get(ctx, login.Session.ID)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	pair, err := h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.Tokens.RefreshToken, pair.RefreshToken)

	after, err := h.repos.Sessions().Get(ctx, login.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, before.LastActivity, after.LastActivity)

	_, err = h.auth.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, common.ErrTokenMalformed)
}

func TestLogout_BadTokenStillClosesSessions(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	h.register(t, "b@x.com", "bob")
	alice := h.login(t, "a@x.com")
	bob := h.login(t, "b@x.com")

	subject := h.subject(t, alice)
	require.NoError(t, h.auth.Logout(ctx, subject, "garbage"))
	require.NoError(t, h.auth.Logout(ctx, subject, "garbage"))

	list, err := h.auth.ListSessions(ctx, subject)
	require.NoError(t, err)
	assert.Zero(t, sessions.ActiveCount(list))

	// a token of another identity is not revoked on alice's behalf
	require.NoError(t, h.auth.Logout(ctx, subject, bob.Tokens.RefreshToken))
	_, err = h.auth.Refresh(ctx, bob.Tokens.RefreshToken)
	assert.NoError(t, err)

	// the untouched refresh token of alice still works: revocation is token scoped
	_, err = h.auth.Refresh(ctx, alice.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestLogout_SessionCloseFailure(t *testing.T) {
	h := newHarnessWithSessions(t, AuthPolicy{}, func(r sessionRepo) sessionRepo {
		return failingSessions{r}
	})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	login := h.login(t, "a@x.com")

	err := h.auth.Logout(ctx, h.subject(t, login), login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, errSessionsDown)

	// revocation was still attempted
	_, err = h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)
}

func TestLogout_InactiveSubjectDenied(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	login := h.login(t, "a@x.com")
	subject := h.subject(t, login)
	subject.Active = false

	err := h.auth.Logout(ctx, subject, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrAuthorizationDenied)

	// nothing was revoked
	_, err = h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestChangePassword_KeepsTokensByDefault(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	login := h.login(t, "a@x.com")
	subject := h.subject(t, login)

	err := h.auth.ChangePassword(ctx, subject, "Wrong-Password-9", "Another-Strong-99")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	err = h.auth.ChangePassword(ctx, subject, testPassword, "short")
	assert.ErrorIs(t, err, common.ErrValidation)

	h.clock.Advance(time.Minute)
	require.NoError(t, h.auth.ChangePassword(ctx, subject, testPassword, "Another-Strong-99"))

	s, err := h.repos.Sessions().Get(ctx, login.Session.ID)
	require.NoError(t, err)
	assert.True(t, s.IsActive)
	assert.Equal(t, h.clock.Now(), s.LastActivity)

	_, err = h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	assert.NoError(t, err)

	_, err = h.auth.Login(ctx, "a@x.com", testPassword, models.DeviceContext{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = h.auth.Login(ctx, "a@x.com", "Another-Strong-99", models.DeviceContext{})
	assert.NoError(t, err)
}

func TestChangePassword_RevokesWhenConfigured(t *testing.T) {
	h := newHarness(t, AuthPolicy{RevokeOnPasswordChange: true})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	login := h.login(t, "a@x.com")
	subject := h.subject(t, login)

	h.clock.Advance(time.Minute)
	require.NoError(t, h.auth.ChangePassword(ctx, subject, testPassword, "Another-Strong-99"))

	_, err := h.auth.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)

	list, err := h.repos.Sessions().ListByIdentity(ctx, subject.ID)
	require.NoError(t, err)
	assert.Zero(t, sessions.ActiveCount(list))

	// logging straight back in, within the same second as the change
	h.clock.Advance(500 * time.Millisecond)
	fresh, err := h.auth.Login(ctx, "a@x.com", "Another-Strong-99", models.DeviceContext{})
	require.NoError(t, err)
	_, err = h.auth.Refresh(ctx, fresh.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestChangePassword_InactiveSubjectDenied(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	subject := h.subject(t, h.login(t, "a@x.com"))
	subject.Active = false

	err := h.auth.ChangePassword(ctx, subject, testPassword, "Another-Strong-99")
	assert.ErrorIs(t, err, common.ErrAuthorizationDenied)
}

func TestRevokeSession(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")
	h.register(t, "b@x.com", "bob")
	first := h.login(t, "a@x.com")
	second := h.login(t, "a@x.com")
	bob := h.subject(t, h.login(t, "b@x.com"))
	admin := h.admin(t)

	err := h.auth.RevokeSession(ctx, bob, first.Session.ID)
	assert.ErrorIs(t, err, common.ErrAuthorizationDenied)

	require.NoError(t, h.auth.RevokeSession(ctx, h.subject(t, second), first.Session.ID))
	got, err := h.repos.Sessions().Get(ctx, first.Session.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, h.auth.RevokeSession(ctx, admin, second.Session.ID))

	assert.ErrorIs(t, h.auth.RevokeSession(ctx, admin, "missing"), common.ErrorNotFound)
}

func TestDashboard(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	h.register(t, "a@x.com", "alice")

	var last *AuthResult
	for i := 0; i < 7; i++ {
		h.clock.Advance(time.Second)
		last = h.login(t, "a@x.com")
	}
	subject := h.subject(t, last)
	require.NoError(t, h.auth.RevokeSession(ctx, subject, last.Session.ID))

	d, err := h.auth.Dashboard(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 7, d.TotalSessions)
	assert.Equal(t, 6, d.ActiveSessions)
	assert.Len(t, d.RecentSessions, dashboardRecentSessions)
	for _, s := range d.RecentSessions {
		assert.True(t, s.IsActive)
	}
	assert.Equal(t, "a@x.com", d.Identity.Email)
}

func TestAuthenticate(t *testing.T) {
	h := newHarness(t, AuthPolicy{})
	ctx := context.Background()
	reg := h.register(t, "a@x.com", "alice")
	login := h.login(t, "a@x.com")

	subject, err := h.auth.Authenticate(ctx, login.Tokens.AccessToken, "sess")
	require.NoError(t, err)
	assert.Equal(t, access.Subject{ID: reg.Identity.ID, Role: models.RolePatient, Active: true, SessionID: "sess"}, subject)

	require.NoError(t, h.repos.Identities().SetActive(ctx, reg.Identity.ID, false, h.clock.Now()))
	subject, err = h.auth.Authenticate(ctx, login.Tokens.AccessToken, "")
	require.NoError(t, err)
	assert.False(t, subject.Active)
	assert.False(t, h.auth.Authorize(ctx, subject, access.ActionEditProfile, access.Resource{OwnerID: subject.ID}).Allowed)

	require.NoError(t, h.repos.Identities().Delete(ctx, reg.Identity.ID))
	subject, err = h.auth.Authenticate(ctx, login.Tokens.AccessToken, "")
	require.NoError(t, err)
	assert.False(t, subject.Active)

	h.clock.Advance(16 * time.Minute)
	_, err = h.auth.Authenticate(ctx, login.Tokens.AccessToken, "")
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	_, err = h.auth.Authenticate(ctx, login.Tokens.RefreshToken, "")
	assert.Error(t, err)
}
