package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/logging"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/services"
	"github.com/dmitrijs2005/medaccount/internal/server/tokens"
	"google.golang.org/grpc"
)

// AuthService is the login-session surface used by the transport.
type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string, device models.DeviceContext) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (tokens.TokenPair, error)
	Logout(ctx context.Context, subject access.Subject, refreshToken string) error
	ChangePassword(ctx context.Context, subject access.Subject, oldPassword, newPassword string) error
	ListSessions(ctx context.Context, subject access.Subject) ([]models.Session, error)
	RevokeSession(ctx context.Context, subject access.Subject, sessionID string) error
	Dashboard(ctx context.Context, subject access.Subject) (*services.Dashboard, error)
	Authenticate(ctx context.Context, accessToken, sessionID string) (access.Subject, error)
	Authorize(ctx context.Context, subject access.Subject, action access.Action, resource access.Resource) access.Decision
}

// AccountService is the profile and administration surface.
type AccountService interface {
	GetProfile(ctx context.Context, subject access.Subject, identityID string) (*services.ProfileView, error)
	UpdateProfile(ctx context.Context, subject access.Subject, identityID string, upd services.ProfileUpdate) (*services.ProfileView, error)
	ProfileImageUploadURL(ctx context.Context, subject access.Subject) (string, error)
	ListUsers(ctx context.Context, subject access.Subject, filter models.IdentityFilter) ([]models.Identity, error)
	Statistics(ctx context.Context, subject access.Subject) (*models.Statistics, error)
	VerifyUser(ctx context.Context, subject access.Subject, identityID string) error
	DeactivateUser(ctx context.Context, subject access.Subject, identityID string) error
	ActivateUser(ctx context.Context, subject access.Subject, identityID string) error
	ChangeRole(ctx context.Context, subject access.Subject, identityID string, role models.Role) error
	DeleteUser(ctx context.Context, subject access.Subject, identityID string) error
}

type GRPCServer struct {
	address string
	auth    AuthService
	account AccountService
	logger  logging.Logger
	version string
	now     func() time.Time
}

func NewGRPCServer(a string, l logging.Logger, as AuthService, acs AccountService, version string) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    as,
		account: acs,
		version: version,
		now:     time.Now,
	}
}

// newServer builds a grpc.Server with the interceptor chain and the account
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.statusInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&serviceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
