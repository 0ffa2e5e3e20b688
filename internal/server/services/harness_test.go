package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/logging"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/metrics"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/password"
	"github.com/dmitrijs2005/medaccount/internal/server/repositories/repomanager"
	sessionrepo "github.com/dmitrijs2005/medaccount/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/medaccount/internal/server/sessions"
	"github.com/dmitrijs2005/medaccount/internal/server/tokens"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Sturdy-Lantern-42"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAvatars struct {
	err error
}

func (f *fakeAvatars) UploadURL(ctx context.Context, identityID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	key := "profile_images/" + identityID + "/img"
	return key, "https://s3.local/put/" + key, nil
}

func (f *fakeAvatars) DownloadURL(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://s3.local/get/" + key, nil
}

type sessionRepo = sessionrepo.Repository

// failingSessions breaks DeactivateAll while delegating everything else.
type failingSessions struct {
	sessionRepo
}

func (failingSessions) DeactivateAll(ctx context.Context, identityID string) (int64, error) {
	return 0, errSessionsDown
}

type harness struct {
	auth    *AuthService
	account *AccountService
	repos   *repomanager.MemoryRepositoryManager
	clock   *fakeClock
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, policy AuthPolicy) *harness {
	t.Helper()
	return newHarnessWithSessions(t, policy, nil)
}

func newHarnessWithSessions(t *testing.T, policy AuthPolicy, wrap func(repo sessionRepo) sessionRepo) *harness {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	repos := repomanager.NewMemoryRepositoryManager()

	var sessRepo sessionRepo = repos.Sessions()
	if wrap != nil {
		sessRepo = wrap(sessRepo)
	}

	issuer := tokens.NewIssuer(tokens.Config{
		Secret:        []byte("test-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		RotateRefresh: true,
	}, repos.Revocations(), tokens.WithClock(clock.Now))

	m := metrics.NewDefault()
	deps := Deps{
		Repos:    repos,
		Hasher:   password.NewBcryptHasher(bcrypt.MinCost),
		Issuer:   issuer,
		Sessions: sessions.NewRegistry(sessRepo, sessions.WithClock(clock.Now)),
		Avatars:  &fakeAvatars{},
		Metrics:  m,
		Logger:   logging.NewNopLogger(),
		Now:      clock.Now,
	}

	return &harness{
		auth:    NewAuthService(deps, policy),
		account: NewAccountService(deps),
		repos:   repos,
		clock:   clock,
		metrics: m,
	}
}

func (h *harness) register(t *testing.T, email, username string) *AuthResult {
	t.Helper()
	res, err := h.auth.Register(context.Background(), RegisterInput{
		Email: email, Username: username, Password: testPassword, PasswordConfirm: testPassword,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) login(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := h.auth.Login(context.Background(), email, testPassword, models.DeviceContext{IPAddress: "10.1.1.1", UserAgent: "Firefox"})
	require.NoError(t, err)
	return res
}

func (h *harness) subject(t *testing.T, res *AuthResult) access.Subject {
	t.Helper()
	var sessionID string
	if res.Session != nil {
		sessionID = res.Session.ID
	}
	s, err := h.auth.Authenticate(context.Background(), res.Tokens.AccessToken, sessionID)
	require.NoError(t, err)
	return s
}

// admin registers an identity, promotes it and logs in again so the token
// carries the admin role.
func (h *harness) admin(t *testing.T) access.Subject {
	t.Helper()
	res := h.register(t, "root@clinic.org", "root")
	require.NoError(t, h.repos.Identities().SetRole(context.Background(), res.Identity.ID, models.RoleAdmin, h.clock.Now()))
	return h.subject(t, h.login(t, "root@clinic.org"))
}

var errSessionsDown = errors.New("sessions store down")
