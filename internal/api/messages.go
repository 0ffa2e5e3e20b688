package api

import "time"

// DateLayout is the wire format of dates of birth.
const DateLayout = "2006-01-02"

type Empty struct{}

type Identity struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
	IsVerified  bool       `json:"is_verified"`
	IsActive    bool       `json:"is_active"`
	LastLoginIP string     `json:"last_login_ip,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Session struct {
	ID           string    `json:"id"`
	DeviceClass  string    `json:"device_class"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Location     string    `json:"location,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type Profile struct {
	Bio                string `json:"bio,omitempty"`
	Website            string `json:"website,omitempty"`
	Location           string `json:"location,omitempty"`
	BirthPlace         string `json:"birth_place,omitempty"`
	BloodType          string `json:"blood_type,omitempty"`
	Allergies          string `json:"allergies,omitempty"`
	MedicalHistory     string `json:"medical_history,omitempty"`
	CurrentMedications string `json:"current_medications,omitempty"`
	LicenseNumber      string `json:"license_number,omitempty"`
	Specialization     string `json:"specialization,omitempty"`
	YearsOfExperience  int    `json:"years_of_experience,omitempty"`
	Education          string `json:"education,omitempty"`
	Certifications     string `json:"certifications,omitempty"`
	Visibility         string `json:"visibility"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	Phone           string `json:"phone,omitempty"`
	DateOfBirth     string `json:"date_of_birth,omitempty"`
	Role            string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Location string `json:"location,omitempty"`
}

// AuthResponse answers Register and Login. SessionID is empty after Register.
type AuthResponse struct {
	Identity  Identity `json:"identity"`
	Tokens    Tokens   `json:"tokens"`
	SessionID string   `json:"session_id,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	Tokens Tokens `json:"tokens"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type DashboardResponse struct {
	Identity       Identity  `json:"identity"`
	RecentSessions []Session `json:"recent_sessions"`
	ActiveSessions int       `json:"active_sessions"`
	TotalSessions  int       `json:"total_sessions"`
}

type GetProfileRequest struct {
	IdentityID string `json:"identity_id,omitempty"`
}

type ProfileResponse struct {
	Identity        Identity `json:"identity"`
	Profile         Profile  `json:"profile"`
	ProfileImageURL string   `json:"profile_image_url,omitempty"`
}

// UpdateProfileRequest is a partial update: absent fields are left alone.
type UpdateProfileRequest struct {
	IdentityID string `json:"identity_id,omitempty"`

	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	DateOfBirth *string `json:"date_of_birth,omitempty"`

	Bio                *string `json:"bio,omitempty"`
	Website            *string `json:"website,omitempty"`
	Location           *string `json:"location,omitempty"`
	BirthPlace         *string `json:"birth_place,omitempty"`
	BloodType          *string `json:"blood_type,omitempty"`
	Allergies          *string `json:"allergies,omitempty"`
	MedicalHistory     *string `json:"medical_history,omitempty"`
	CurrentMedications *string `json:"current_medications,omitempty"`
	LicenseNumber      *string `json:"license_number,omitempty"`
	Specialization     *string `json:"specialization,omitempty"`
	YearsOfExperience  *int    `json:"years_of_experience,omitempty"`
	Education          *string `json:"education,omitempty"`
	Certifications     *string `json:"certifications,omitempty"`
	Visibility         *string `json:"visibility,omitempty"`
}

type ProfileImageUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type AuthorizeRequest struct {
	Action  string `json:"action"`
	OwnerID string `json:"owner_id,omitempty"`
}

type AuthorizeResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

type ListUsersRequest struct {
	Role   string `json:"role,omitempty"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type ListUsersResponse struct {
	Users []Identity `json:"users"`
}

type UserRequest struct {
	IdentityID string `json:"identity_id"`
}

type ChangeRoleRequest struct {
	IdentityID string `json:"identity_id"`
	Role       string `json:"role"`
}

type StatisticsResponse struct {
	Total    int64            `json:"total_users"`
	Active   int64            `json:"active_users"`
	Verified int64            `json:"verified_users"`
	ByRole   map[string]int64 `json:"role_statistics"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}
