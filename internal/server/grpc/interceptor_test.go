package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    codes.Code
		message string
	}{
		{"validation keeps fields", common.NewValidationError("email", "is required"), codes.InvalidArgument, "validation error: email: is required"},
		{"duplicate email", fmt.Errorf("insert: %w", common.ErrDuplicateEmail), codes.AlreadyExists, "email already registered"},
		{"duplicate username", common.ErrDuplicateUsername, codes.AlreadyExists, "username already taken"},
		{"credentials", common.ErrInvalidCredentials, codes.Unauthenticated, "invalid email or password"},
		{"expired", fmt.Errorf("access: %w", common.ErrTokenExpired), codes.Unauthenticated, "token expired"},
		{"revoked", common.ErrTokenRevoked, codes.Unauthenticated, "token revoked"},
		{"malformed", common.ErrTokenMalformed, codes.Unauthenticated, "token malformed"},
		{"signature", common.ErrTokenSignatureInvalid, codes.Unauthenticated, "token signature invalid"},
		{"disabled", common.ErrAccountDisabled, codes.FailedPrecondition, "user account is disabled"},
		{"denied keeps reason", fmt.Errorf("%w: role not permitted", common.ErrAuthorizationDenied), codes.PermissionDenied, "authorization denied: role not permitted"},
		{"not found", fmt.Errorf("identity: %w", common.ErrorNotFound), codes.NotFound, "not found"},
		{"store down", fmt.Errorf("db error: %w: dial", common.ErrStoreUnavailable), codes.Unavailable, "store unavailable"},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded, context.DeadlineExceeded.Error()},
		{"unknown hides details", errors.New("pq: relation does not exist"), codes.Internal, "internal error"},
		{"status passes through", status.Error(codes.Unauthenticated, "missing token"), codes.Unauthenticated, "missing token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := toStatus(tt.err)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.message, st.Message())
		})
	}
}

func TestStatusInterceptor_ConvertsErrors(t *testing.T) {
	s := NewGRPCServer("", nopLogger{}, nil, nil, "test")
	info := &grpc.UnaryServerInfo{FullMethod: "/x/y"}

	resp, err := s.statusInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, common.ErrAccountDisabled
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err = s.statusInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestAccessTokenInterceptor_MissingToken(t *testing.T) {
	s := NewGRPCServer("", nopLogger{}, nil, nil, "test")
	info := &grpc.UnaryServerInfo{FullMethod: "/medaccount.v1.AccountService/Dashboard"}

	called := false
	_, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		called = true
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.False(t, called)
}

func TestAccessTokenInterceptor_PublicMethodSkipsAuth(t *testing.T) {
	s := NewGRPCServer("", nopLogger{}, nil, nil, "test")
	info := &grpc.UnaryServerInfo{FullMethod: "/medaccount.v1.AccountService/Login"}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		_, err := subjectFromContext(ctx)
		assert.Error(t, err)
		return "public", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "public", resp)
}

func TestDeviceFromContext(t *testing.T) {
	ctx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("192.168.1.20"), Port: 51234},
	})
	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(common.UserAgentHeaderName, "Mozilla/5.0 (iPad; Tablet)"))

	d := deviceFromContext(ctx)
	assert.Equal(t, "192.168.1.20", d.IPAddress)
	assert.Equal(t, "Mozilla/5.0 (iPad; Tablet)", d.UserAgent)

	ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(common.ForwardedForHeaderName, "203.0.113.7, 10.0.0.1"))
	d = deviceFromContext(ctx)
	assert.Equal(t, "203.0.113.7", d.IPAddress)
	assert.Empty(t, d.UserAgent)

	assert.Empty(t, deviceFromContext(context.Background()).IPAddress)
}
