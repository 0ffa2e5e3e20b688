package models

import "time"

// Identity is a registered account. Email and Username are unique across all
// identities; Email is stored lower-cased.
type Identity struct {
	ID             string
	Email          string
	Username       string
	PasswordDigest string
	Role           Role
	FirstName      string
	LastName       string
	Phone          string
	DateOfBirth    *time.Time
	ProfileImage   string
	IsVerified     bool
	IsActive       bool
	LastLoginIP    string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name, falling back to the username.
func (i *Identity) FullName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	case i.LastName != "":
		return i.LastName
	}
	return i.Username
}

// PersonalFields are the identity attributes an owner may edit directly.
// Role, flags and credentials are deliberately absent.
type PersonalFields struct {
	FirstName   string
	LastName    string
	Phone       string
	DateOfBirth *time.Time
}

// IdentityFilter narrows admin listings. Search matches first name, last
// name, email and username case-insensitively.
type IdentityFilter struct {
	Role   Role
	Search string
	Limit  int
	Offset int
}

// Statistics summarises the identity population.
type Statistics struct {
	Total    int64
	Active   int64
	Verified int64
	ByRole   map[Role]int64
}
