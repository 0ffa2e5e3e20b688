package models

import "time"

// Visibility controls who may view a profile besides its owner and admins.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityFriends:
		return true
	}
	return false
}

// Profile is the one-to-one companion of an Identity, created in the same
// transaction and removed with it.
type Profile struct {
	IdentityID         string
	Bio                string
	Website            string
	Location           string
	BirthPlace         string
	BloodType          string
	Allergies          string
	MedicalHistory     string
	CurrentMedications string
	LicenseNumber      string
	Specialization     string
	YearsOfExperience  int
	Education          string
	Certifications     string
	Visibility         Visibility
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewProfile returns an empty private profile for identityID.
func NewProfile(identityID string, now time.Time) *Profile {
	return &Profile{
		IdentityID: identityID,
		Visibility: VisibilityPrivate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
