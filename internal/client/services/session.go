// Package services contains application services for the medaccount client.
// The session service keeps the login of the CLI user across restarts by
// persisting tokens into the local metadata store.
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/client/client"
	"github.com/dmitrijs2005/medaccount/internal/client/repositories/metadata"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keySessionID    = "session_id"
	keyEmail        = "email"
	keyIdentityID   = "identity_id"
)

var tokenKeys = []string{keyAccessToken, keyRefreshToken, keySessionID}

// SessionService manages the login state of the CLI.
//
// Contract:
//   - Restore: reload a saved login into the client, reporting the email.
//   - Login/Register: talk to the server and remember who is logged in.
//   - Logout: end the login on the server and forget everything locally.
type SessionService interface {
	Restore(ctx context.Context) (string, error)
	Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error)
	Login(ctx context.Context, email string, password []byte, location string) (*api.AuthResponse, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type sessionService struct {
	client client.Client
	repo   metadata.Repository
}

func NewSessionService(c client.Client, repo metadata.Repository) SessionService {
	return &sessionService{client: c, repo: repo}
}

// PersistTokens returns a client token listener that writes every token
// change into repo. An empty token set removes the saved tokens.
func PersistTokens(repo metadata.Repository) func(client.Tokens) {
	return func(t client.Tokens) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		var err error
		if t == (client.Tokens{}) {
			err = repo.Delete(ctx, tokenKeys...)
		} else {
			err = repo.SetMany(ctx, map[string]string{
				keyAccessToken:  t.AccessToken,
				keyRefreshToken: t.RefreshToken,
				keySessionID:    t.SessionID,
			})
		}
		if err != nil {
			log.Printf("failed to save tokens: %s", err.Error())
		}
	}
}

// Restore loads the saved tokens into the client. It returns the email of
// the saved login or "" when nobody is logged in.
func (s *sessionService) Restore(ctx context.Context) (string, error) {
	var t client.Tokens
	var err error

	if t.AccessToken, err = s.repo.Get(ctx, keyAccessToken); err != nil {
		return "", err
	}
	if t.AccessToken == "" {
		return "", nil
	}
	if t.RefreshToken, err = s.repo.Get(ctx, keyRefreshToken); err != nil {
		return "", err
	}
	if t.SessionID, err = s.repo.Get(ctx, keySessionID); err != nil {
		return "", err
	}

	s.client.SetTokens(t)
	return s.repo.Get(ctx, keyEmail)
}

func (s *sessionService) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	return s.client.Register(ctx, req)
}

func (s *sessionService) Login(ctx context.Context, email string, password []byte, location string) (*api.AuthResponse, error) {
	res, err := s.client.Login(ctx, email, string(password), location)
	if err != nil {
		return nil, err
	}

	err = s.repo.SetMany(ctx, map[string]string{
		keyEmail:      res.Identity.Email,
		keyIdentityID: res.Identity.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save login: %w", err)
	}
	return res, nil
}

// Logout clears local state even when the server cannot be reached.
func (s *sessionService) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx)
	if cerr := s.repo.Clear(ctx); cerr != nil {
		return cerr
	}
	return err
}

func (s *sessionService) Ping(ctx context.Context) error {
	_, err := s.client.Health(ctx)
	return err
}

func (s *sessionService) Close() error {
	return s.client.Close()
}
