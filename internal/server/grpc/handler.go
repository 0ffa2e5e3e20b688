package grpc

import (
	"context"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/access"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	"github.com/dmitrijs2005/medaccount/internal/server/services"
	"github.com/dmitrijs2005/medaccount/internal/server/tokens"
)

const serviceName = "medaccount"

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.AuthResponse, error) {
	dob, err := parseDate("date_of_birth", req.DateOfBirth)
	if err != nil {
		return nil, err
	}

	res, err := s.auth.Register(ctx, services.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		DateOfBirth:     dob,
		Role:            models.Role(req.Role),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registered", "identity_id", res.Identity.ID)
	return authResponse(res), nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.AuthResponse, error) {
	device := deviceFromContext(ctx)
	device.Location = req.Location

	res, err := s.auth.Login(ctx, req.Email, req.Password, device)
	if err != nil {
		return nil, err
	}
	return authResponse(res), nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *api.RefreshRequest) (*api.RefreshResponse, error) {
	pair, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &api.RefreshResponse{Tokens: toTokens(pair)}, nil
}

func (s *GRPCServer) Health(ctx context.Context, req *api.Empty) (*api.HealthResponse, error) {
	return &api.HealthResponse{
		Status:    "healthy",
		Service:   serviceName,
		Version:   s.version,
		Timestamp: s.now().UTC(),
	}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.Empty, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, subject, req.RefreshToken); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *api.ChangePasswordRequest) (*api.Empty, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.ChangePassword(ctx, subject, req.OldPassword, req.NewPassword); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) ListSessions(ctx context.Context, req *api.Empty) (*api.ListSessionsResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.auth.ListSessions(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &api.ListSessionsResponse{Sessions: toSessions(list)}, nil
}

func (s *GRPCServer) RevokeSession(ctx context.Context, req *api.RevokeSessionRequest) (*api.Empty, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, common.NewValidationError("session_id", "cannot be blank")
	}
	if err := s.auth.RevokeSession(ctx, subject, req.SessionID); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) Dashboard(ctx context.Context, req *api.Empty) (*api.DashboardResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.auth.Dashboard(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &api.DashboardResponse{
		Identity:       toIdentity(d.Identity),
		RecentSessions: toSessions(d.RecentSessions),
		ActiveSessions: d.ActiveSessions,
		TotalSessions:  d.TotalSessions,
	}, nil
}

func (s *GRPCServer) GetProfile(ctx context.Context, req *api.GetProfileRequest) (*api.ProfileResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.account.GetProfile(ctx, subject, req.IdentityID)
	if err != nil {
		return nil, err
	}
	return profileResponse(view), nil
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, req *api.UpdateProfileRequest) (*api.ProfileResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}

	upd, err := toProfileUpdate(req)
	if err != nil {
		return nil, err
	}

	view, err := s.account.UpdateProfile(ctx, subject, req.IdentityID, upd)
	if err != nil {
		return nil, err
	}
	return profileResponse(view), nil
}

func (s *GRPCServer) ProfileImageUploadURL(ctx context.Context, req *api.Empty) (*api.ProfileImageUploadResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	url, err := s.account.ProfileImageUploadURL(ctx, subject)
	if err != nil {
		return nil, err
	}
	return &api.ProfileImageUploadResponse{UploadURL: url}, nil
}

func (s *GRPCServer) Authorize(ctx context.Context, req *api.AuthorizeRequest) (*api.AuthorizeResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	d := s.auth.Authorize(ctx, subject, access.Action(req.Action), access.Resource{OwnerID: req.OwnerID})
	return &api.AuthorizeResponse{Allowed: d.Allowed, Reason: d.Reason}, nil
}

func (s *GRPCServer) ListUsers(ctx context.Context, req *api.ListUsersRequest) (*api.ListUsersResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.account.ListUsers(ctx, subject, models.IdentityFilter{
		Role:   models.Role(req.Role),
		Search: req.Search,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, err
	}

	users := make([]api.Identity, 0, len(list))
	for i := range list {
		users = append(users, toIdentity(&list[i]))
	}
	return &api.ListUsersResponse{Users: users}, nil
}

func (s *GRPCServer) VerifyUser(ctx context.Context, req *api.UserRequest) (*api.Empty, error) {
	return s.adminCall(ctx, req.IdentityID, s.account.VerifyUser)
}

func (s *GRPCServer) DeactivateUser(ctx context.Context, req *api.UserRequest) (*api.Empty, error) {
	return s.adminCall(ctx, req.IdentityID, s.account.DeactivateUser)
}

func (s *GRPCServer) ActivateUser(ctx context.Context, req *api.UserRequest) (*api.Empty, error) {
	return s.adminCall(ctx, req.IdentityID, s.account.ActivateUser)
}

func (s *GRPCServer) DeleteUser(ctx context.Context, req *api.UserRequest) (*api.Empty, error) {
	return s.adminCall(ctx, req.IdentityID, s.account.DeleteUser)
}

func (s *GRPCServer) ChangeRole(ctx context.Context, req *api.ChangeRoleRequest) (*api.Empty, error) {
	return s.adminCall(ctx, req.IdentityID, func(ctx context.Context, subject access.Subject, identityID string) error {
		return s.account.ChangeRole(ctx, subject, identityID, models.Role(req.Role))
	})
}

func (s *GRPCServer) Statistics(ctx context.Context, req *api.Empty) (*api.StatisticsResponse, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.account.Statistics(ctx, subject)
	if err != nil {
		return nil, err
	}

	byRole := make(map[string]int64, len(st.ByRole))
	for role, n := range st.ByRole {
		byRole[string(role)] = n
	}
	return &api.StatisticsResponse{Total: st.Total, Active: st.Active, Verified: st.Verified, ByRole: byRole}, nil
}

func (s *GRPCServer) adminCall(ctx context.Context, identityID string, call func(context.Context, access.Subject, string) error) (*api.Empty, error) {
	subject, err := subjectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if identityID == "" {
		return nil, common.NewValidationError("identity_id", "cannot be blank")
	}
	if err := call(ctx, subject, identityID); err != nil {
		return nil, err
	}
	return &api.Empty{}, nil
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(api.DateLayout, value)
	if err != nil {
		return nil, common.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(api.DateLayout)
}

func authResponse(res *services.AuthResult) *api.AuthResponse {
	resp := &api.AuthResponse{
		Identity: toIdentity(res.Identity),
		Tokens:   toTokens(res.Tokens),
	}
	if res.Session != nil {
		resp.SessionID = res.Session.ID
	}
	return resp
}

func toTokens(p tokens.TokenPair) api.Tokens {
	return api.Tokens{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		AccessExpiresAt:  p.AccessExpiresAt,
		RefreshExpiresAt: p.RefreshExpiresAt,
	}
}

// toIdentity never copies the password digest.
func toIdentity(i *models.Identity) api.Identity {
	if i == nil {
		return api.Identity{}
	}
	return api.Identity{
		ID:          i.ID,
		Email:       i.Email,
		Username:    i.Username,
		Role:        string(i.Role),
		FirstName:   i.FirstName,
		LastName:    i.LastName,
		Phone:       i.Phone,
		DateOfBirth: formatDate(i.DateOfBirth),
		IsVerified:  i.IsVerified,
		IsActive:    i.IsActive,
		LastLoginIP: i.LastLoginIP,
		LastLoginAt: i.LastLoginAt,
		CreatedAt:   i.CreatedAt,
	}
}

func toSessions(list []models.Session) []api.Session {
	out := make([]api.Session, 0, len(list))
	for _, ss := range list {
		out = append(out, api.Session{
			ID:           ss.ID,
			DeviceClass:  string(ss.DeviceClass),
			IPAddress:    ss.IPAddress,
			UserAgent:    ss.UserAgent,
			Location:     ss.Location,
			IsActive:     ss.IsActive,
			CreatedAt:    ss.CreatedAt,
			LastActivity: ss.LastActivity,
		})
	}
	return out
}

func profileResponse(v *services.ProfileView) *api.ProfileResponse {
	resp := &api.ProfileResponse{
		Identity:        toIdentity(v.Identity),
		ProfileImageURL: v.ProfileImageURL,
	}
	if p := v.Profile; p != nil {
		resp.Profile = api.Profile{
			Bio:                p.Bio,
			Website:            p.Website,
			Location:           p.Location,
			BirthPlace:         p.BirthPlace,
			BloodType:          p.BloodType,
			Allergies:          p.Allergies,
			MedicalHistory:     p.MedicalHistory,
			CurrentMedications: p.CurrentMedications,
			LicenseNumber:      p.LicenseNumber,
			Specialization:     p.Specialization,
			YearsOfExperience:  p.YearsOfExperience,
			Education:          p.Education,
			Certifications:     p.Certifications,
			Visibility:         string(p.Visibility),
		}
	}
	return resp
}

func toProfileUpdate(req *api.UpdateProfileRequest) (services.ProfileUpdate, error) {
	upd := services.ProfileUpdate{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Phone:              req.Phone,
		Bio:                req.Bio,
		Website:            req.Website,
		Location:           req.Location,
		BirthPlace:         req.BirthPlace,
		BloodType:          req.BloodType,
		Allergies:          req.Allergies,
		MedicalHistory:     req.MedicalHistory,
		CurrentMedications: req.CurrentMedications,
		LicenseNumber:      req.LicenseNumber,
		Specialization:     req.Specialization,
		YearsOfExperience:  req.YearsOfExperience,
		Education:          req.Education,
		Certifications:     req.Certifications,
	}

	if req.DateOfBirth != nil {
		dob, err := parseDate("date_of_birth", *req.DateOfBirth)
		if err != nil {
			return upd, err
		}
		upd.DateOfBirth = dob
	}
	if req.Visibility != nil {
		v := models.Visibility(*req.Visibility)
		upd.Visibility = &v
	}
	return upd, nil
}
