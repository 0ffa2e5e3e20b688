package client

import (
	"context"

	"github.com/dmitrijs2005/medaccount/internal/api"
)

// Tokens is the credential state of one login.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

type Client interface {
	Close() error
	Tokens() Tokens
	SetTokens(t Tokens)
	Health(ctx context.Context) (*api.HealthResponse, error)
	Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error)
	Login(ctx context.Context, email, password, location string) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	ListSessions(ctx context.Context) ([]api.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	Dashboard(ctx context.Context) (*api.DashboardResponse, error)
	GetProfile(ctx context.Context, identityID string) (*api.ProfileResponse, error)
	UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error)
	ProfileImageUploadURL(ctx context.Context) (string, error)
}
