package grpc

import (
	"context"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"google.golang.org/grpc"
)

// accountServer lists the handlers backing api.ServiceName.
type accountServer interface {
	Register(context.Context, *api.RegisterRequest) (*api.AuthResponse, error)
	Login(context.Context, *api.LoginRequest) (*api.AuthResponse, error)
	Refresh(context.Context, *api.RefreshRequest) (*api.RefreshResponse, error)
	Health(context.Context, *api.Empty) (*api.HealthResponse, error)
	Logout(context.Context, *api.LogoutRequest) (*api.Empty, error)
	ChangePassword(context.Context, *api.ChangePasswordRequest) (*api.Empty, error)
	ListSessions(context.Context, *api.Empty) (*api.ListSessionsResponse, error)
	RevokeSession(context.Context, *api.RevokeSessionRequest) (*api.Empty, error)
	Dashboard(context.Context, *api.Empty) (*api.DashboardResponse, error)
	GetProfile(context.Context, *api.GetProfileRequest) (*api.ProfileResponse, error)
	UpdateProfile(context.Context, *api.UpdateProfileRequest) (*api.ProfileResponse, error)
	ProfileImageUploadURL(context.Context, *api.Empty) (*api.ProfileImageUploadResponse, error)
	Authorize(context.Context, *api.AuthorizeRequest) (*api.AuthorizeResponse, error)
	ListUsers(context.Context, *api.ListUsersRequest) (*api.ListUsersResponse, error)
	VerifyUser(context.Context, *api.UserRequest) (*api.Empty, error)
	DeactivateUser(context.Context, *api.UserRequest) (*api.Empty, error)
	ActivateUser(context.Context, *api.UserRequest) (*api.Empty, error)
	ChangeRole(context.Context, *api.ChangeRoleRequest) (*api.Empty, error)
	DeleteUser(context.Context, *api.UserRequest) (*api.Empty, error)
	Statistics(context.Context, *api.Empty) (*api.StatisticsResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*accountServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodRegister, accountServer.Register),
		unary(api.MethodLogin, accountServer.Login),
		unary(api.MethodRefresh, accountServer.Refresh),
		unary(api.MethodHealth, accountServer.Health),
		unary(api.MethodLogout, accountServer.Logout),
		unary(api.MethodChangePassword, accountServer.ChangePassword),
		unary(api.MethodListSessions, accountServer.ListSessions),
		unary(api.MethodRevokeSession, accountServer.RevokeSession),
		unary(api.MethodDashboard, accountServer.Dashboard),
		unary(api.MethodGetProfile, accountServer.GetProfile),
		unary(api.MethodUpdateProfile, accountServer.UpdateProfile),
		unary(api.MethodProfileImageUploadURL, accountServer.ProfileImageUploadURL),
		unary(api.MethodAuthorize, accountServer.Authorize),
		unary(api.MethodListUsers, accountServer.ListUsers),
		unary(api.MethodVerifyUser, accountServer.VerifyUser),
		unary(api.MethodDeactivateUser, accountServer.DeactivateUser),
		unary(api.MethodActivateUser, accountServer.ActivateUser),
		unary(api.MethodChangeRole, accountServer.ChangeRole),
		unary(api.MethodDeleteUser, accountServer.DeleteUser),
		unary(api.MethodStatistics, accountServer.Statistics),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "medaccount/v1/account",
}

// unary adapts a typed handler to grpc.MethodDesc, the way generated code
// does for each method.
func unary[Req, Resp any](name string, call func(accountServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(accountServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: api.FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(accountServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
