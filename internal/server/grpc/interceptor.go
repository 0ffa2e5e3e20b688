package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const subjectKey ctxKey = "subject"

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if api.PublicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := firstMetadata(ctx, common.AccessTokenHeaderName)
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	subject, err := s.auth.Authenticate(ctx, accessToken, firstMetadata(ctx, common.SessionIDHeaderName))
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, subjectKey, subject)

	return handler(ctx, req)
}

// statusInterceptor logs every call and turns service errors into gRPC
// statuses. It runs outermost so it also sees authentication failures.
func (s *GRPCServer) statusInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	started := time.Now()

	resp, err := handler(ctx, req)
	if err == nil {
		s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "duration", time.Since(started))
		return resp, nil
	}

	st := toStatus(err)
	if st.Code() == codes.Internal || st.Code() == codes.Unavailable {
		s.logger.Error(ctx, "rpc failed", "method", info.FullMethod, "error", err.Error())
	} else {
		s.logger.Info(ctx, "rpc rejected", "method", info.FullMethod, "code", st.Code().String(), "error", err.Error())
	}
	return nil, st.Err()
}

// statusMapping is checked in order; the first sentinel matched by
// errors.Is decides the code.
var statusMapping = []struct {
	err  error
	code codes.Code
}{
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrDuplicateEmail, codes.AlreadyExists},
	{common.ErrDuplicateUsername, codes.AlreadyExists},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrTokenRevoked, codes.Unauthenticated},
	{common.ErrTokenMalformed, codes.Unauthenticated},
	{common.ErrTokenSignatureInvalid, codes.Unauthenticated},
	{common.ErrAccountDisabled, codes.FailedPrecondition},
	{common.ErrAuthorizationDenied, codes.PermissionDenied},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrStoreUnavailable, codes.Unavailable},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// toStatus maps err to a gRPC status. Messages carry the sentinel text so
// clients can tell the cases apart; validation and authorization errors keep
// their details. Unknown errors are reported as a bare internal error.
func toStatus(err error) *status.Status {
	if st, ok := status.FromError(err); ok {
		return st
	}

	for _, m := range statusMapping {
		if !errors.Is(err, m.err) {
			continue
		}
		switch m.code {
		case codes.InvalidArgument, codes.PermissionDenied:
			return status.New(m.code, err.Error())
		}
		return status.New(m.code, m.err.Error())
	}

	return status.New(codes.Internal, common.ErrorInternal.Error())
}

func subjectFromContext(ctx context.Context) (access.Subject, error) {
	subject, ok := ctx.Value(subjectKey).(access.Subject)
	if !ok {
		return access.Subject{}, status.Error(codes.Unauthenticated, "missing token")
	}
	return subject, nil
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// deviceFromContext describes the calling device from the peer address and
// the request metadata. A x-forwarded-for header wins over the peer address.
func deviceFromContext(ctx context.Context) models.DeviceContext {
	var d models.DeviceContext

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		d.IPAddress = addr
	}

	if fwd := firstMetadata(ctx, common.ForwardedForHeaderName); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		d.IPAddress = strings.TrimSpace(first)
	}

	d.UserAgent = firstMetadata(ctx, common.UserAgentHeaderName)
	return d
}
