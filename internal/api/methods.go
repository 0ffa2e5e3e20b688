package api

const ServiceName = "medaccount.v1.AccountService"

const (
	MethodRegister              = "Register"
	MethodLogin                 = "Login"
	MethodRefresh               = "Refresh"
	MethodHealth                = "Health"
	MethodLogout                = "Logout"
	MethodChangePassword        = "ChangePassword"
	MethodListSessions          = "ListSessions"
	MethodRevokeSession         = "RevokeSession"
	MethodDashboard             = "Dashboard"
	MethodGetProfile            = "GetProfile"
	MethodUpdateProfile         = "UpdateProfile"
	MethodProfileImageUploadURL = "ProfileImageUploadURL"
	MethodAuthorize             = "Authorize"
	MethodListUsers             = "ListUsers"
	MethodVerifyUser            = "VerifyUser"
	MethodDeactivateUser        = "DeactivateUser"
	MethodActivateUser          = "ActivateUser"
	MethodChangeRole            = "ChangeRole"
	MethodDeleteUser            = "DeleteUser"
	MethodStatistics            = "Statistics"
)

// FullMethod returns the gRPC path of method, e.g.
// "/medaccount.v1.AccountService/Login".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// PublicMethods can be called without an access token.
var PublicMethods = map[string]bool{
	FullMethod(MethodRegister): true,
	FullMethod(MethodLogin):    true,
	FullMethod(MethodRefresh):  true,
	FullMethod(MethodHealth):   true,
}
