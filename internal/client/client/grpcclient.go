package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	userAgent   string
	dialOptions []grpc.DialOption
	onTokens    func(Tokens)

	conn *grpc.ClientConn

	mu     sync.RWMutex
	tokens Tokens

	// refreshMu serialises refreshes so concurrent expiries rotate once.
	refreshMu sync.Mutex
}

type Option func(*GRPCClient)

// WithUserAgent sets the user agent the server classifies the device from.
func WithUserAgent(ua string) Option {
	return func(c *GRPCClient) { c.userAgent = ua }
}

// WithTokenListener is called with the new state every time the tokens
// change: after login, refresh and logout.
func WithTokenListener(fn func(Tokens)) Option {
	return func(c *GRPCClient) { c.onTokens = fn }
}

// WithDialOptions appends extra dial options, e.g. a custom dialer.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOptions = append(c.dialOptions, opts...) }
}

func NewGRPCClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.initGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) initGRPCClient() error {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	}
	if s.userAgent != "" {
		opts = append(opts, grpc.WithUserAgent(s.userAgent))
	}
	opts = append(opts, s.dialOptions...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// SetTokens restores a saved login without notifying the listener.
func (s *GRPCClient) SetTokens(t Tokens) {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
}

func (s *GRPCClient) updateTokens(t Tokens) {
	s.SetTokens(t)
	if s.onTokens != nil {
		s.onTokens(t)
	}
}

func withTokens(ctx context.Context, t Tokens) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, t.AccessToken)
	if t.SessionID != "" {
		md.Set(common.SessionIDHeaderName, t.SessionID)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// accessTokenInterceptor attaches the current tokens to protected calls. When
// the server reports the access token expired it refreshes once and retries.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if api.PublicMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	tokens := s.Tokens()
	err := invoker(withTokens(ctx, tokens), method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) || tokens.RefreshToken == "" {
		return err
	}

	if err := s.refresh(ctx, tokens.AccessToken); err != nil {
		return err
	}

	// TOKENS REFRESHED, retrying with the new access token
	return invoker(withTokens(ctx, s.Tokens()), method, req, reply, cc, opts...)
}

// refresh exchanges the refresh token unless another call already replaced
// the stale access token.
func (s *GRPCClient) refresh(ctx context.Context, staleAccessToken string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	current := s.Tokens()
	if current.AccessToken != staleAccessToken {
		return nil
	}

	var resp api.RefreshResponse
	err := s.conn.Invoke(ctx, api.FullMethod(api.MethodRefresh), &api.RefreshRequest{RefreshToken: current.RefreshToken}, &resp)
	if err != nil {
		return err
	}

	s.updateTokens(Tokens{
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
		SessionID:    current.SessionID,
	})
	return nil
}

func (s *GRPCClient) invoke(ctx context.Context, method string, req, resp any) error {
	if !api.PublicMethods[api.FullMethod(method)] && s.Tokens().AccessToken == "" {
		return ErrNotLoggedIn
	}
	return s.mapError(s.conn.Invoke(ctx, api.FullMethod(method), req, resp))
}

func (s *GRPCClient) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := s.invoke(ctx, api.MethodHealth, &api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := s.invoke(ctx, api.MethodRegister, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login authenticates and keeps the returned tokens and session id for the
// following calls.
func (s *GRPCClient) Login(ctx context.Context, email, password, location string) (*api.AuthResponse, error) {
	var resp api.AuthResponse
	req := &api.LoginRequest{Email: email, Password: password, Location: location}
	if err := s.invoke(ctx, api.MethodLogin, req, &resp); err != nil {
		return nil, err
	}

	s.updateTokens(Tokens{
		AccessToken:  resp.Tokens.AccessToken,
		RefreshToken: resp.Tokens.RefreshToken,
		SessionID:    resp.SessionID,
	})
	return &resp, nil
}

// Logout asks the server to end the login and forgets the tokens locally
// even when the server call fails.
func (s *GRPCClient) Logout(ctx context.Context) error {
	tokens := s.Tokens()
	if tokens.AccessToken == "" {
		return ErrNotLoggedIn
	}

	err := s.invoke(ctx, api.MethodLogout, &api.LogoutRequest{RefreshToken: tokens.RefreshToken}, &api.Empty{})
	s.updateTokens(Tokens{})
	return err
}

func (s *GRPCClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := &api.ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	return s.invoke(ctx, api.MethodChangePassword, req, &api.Empty{})
}

func (s *GRPCClient) ListSessions(ctx context.Context) ([]api.Session, error) {
	var resp api.ListSessionsResponse
	if err := s.invoke(ctx, api.MethodListSessions, &api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (s *GRPCClient) RevokeSession(ctx context.Context, sessionID string) error {
	return s.invoke(ctx, api.MethodRevokeSession, &api.RevokeSessionRequest{SessionID: sessionID}, &api.Empty{})
}

func (s *GRPCClient) Dashboard(ctx context.Context) (*api.DashboardResponse, error) {
	var resp api.DashboardResponse
	if err := s.invoke(ctx, api.MethodDashboard, &api.Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) GetProfile(ctx context.Context, identityID string) (*api.ProfileResponse, error) {
	var resp api.ProfileResponse
	if err := s.invoke(ctx, api.MethodGetProfile, &api.GetProfileRequest{IdentityID: identityID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *GRPCClient) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	var resp api.ProfileResponse
	if err := s.invoke(ctx, api.MethodUpdateProfile, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProfileImageUploadURL returns a presigned URL the profile image is PUT to.
func (s *GRPCClient) ProfileImageUploadURL(ctx context.Context) (string, error) {
	var resp api.ProfileImageUploadResponse
	if err := s.invoke(ctx, api.MethodProfileImageUploadURL, &api.Empty{}, &resp); err != nil {
		return "", err
	}
	return resp.UploadURL, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrForbidden, st.Message())
	case codes.InvalidArgument, codes.AlreadyExists, codes.FailedPrecondition, codes.NotFound:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
