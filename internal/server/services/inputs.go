package services

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/medaccount/internal/common"
	"github.com/dmitrijs2005/medaccount/internal/server/models"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var (
	usernameRe = regexp.MustCompile(`^[\w.@+-]+$`)
	phoneRe    = regexp.MustCompile(`^\+?1?\d{9,15}$`)
)

var bloodTypes = []any{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// RegisterInput is the self-registration payload. Role defaults to patient;
// admin can only be granted by an administrator.
type RegisterInput struct {
	Email           string      `json:"email"`
	Username        string      `json:"username"`
	Password        string      `json:"password"`
	PasswordConfirm string      `json:"password_confirm"`
	FirstName       string      `json:"first_name"`
	LastName        string      `json:"last_name"`
	Phone           string      `json:"phone"`
	DateOfBirth     *time.Time  `json:"date_of_birth"`
	Role            models.Role `json:"role"`
}

func (in *RegisterInput) normalize() {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Role == "" {
		in.Role = models.RolePatient
	}
}

func (in *RegisterInput) validate(now time.Time) error {
	return validationError(validation.ValidateStruct(in,
		validation.Field(&in.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&in.Username, validation.Required, validation.Length(3, 150),
			validation.Match(usernameRe).Error("may contain only letters, digits and @/./+/-/_")),
		validation.Field(&in.Password, validation.Required),
		validation.Field(&in.PasswordConfirm, validation.Required, validation.By(equals(in.Password, "passwords don't match"))),
		validation.Field(&in.FirstName, validation.Length(0, 150)),
		validation.Field(&in.LastName, validation.Length(0, 150)),
		validation.Field(&in.Phone, validation.Match(phoneRe).Error("must be in the format +999999999, up to 15 digits")),
		validation.Field(&in.DateOfBirth, validation.By(notInFuture(now))),
		validation.Field(&in.Role, validation.In(models.RoleDoctor, models.RolePatient, models.RoleStaff).Error("must be doctor, patient or staff")),
	))
}

// ProfileUpdate is a partial update; nil fields are left unchanged. The
// personal fields live on the identity, the rest on the profile.
type ProfileUpdate struct {
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	Phone       *string    `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`

	Bio                *string            `json:"bio"`
	Website            *string            `json:"website"`
	Location           *string            `json:"location"`
	BirthPlace         *string            `json:"birth_place"`
	BloodType          *string            `json:"blood_type"`
	Allergies          *string            `json:"allergies"`
	MedicalHistory     *string            `json:"medical_history"`
	CurrentMedications *string            `json:"current_medications"`
	LicenseNumber      *string            `json:"license_number"`
	Specialization     *string            `json:"specialization"`
	YearsOfExperience  *int               `json:"years_of_experience"`
	Education          *string            `json:"education"`
	Certifications     *string            `json:"certifications"`
	Visibility         *models.Visibility `json:"visibility"`
}

func (u *ProfileUpdate) validate(now time.Time) error {
	return validationError(validation.ValidateStruct(u,
		validation.Field(&u.FirstName, validation.Length(0, 150)),
		validation.Field(&u.LastName, validation.Length(0, 150)),
		validation.Field(&u.Phone, validation.Match(phoneRe).Error("must be in the format +999999999, up to 15 digits")),
		validation.Field(&u.DateOfBirth, validation.By(notInFuture(now))),
		validation.Field(&u.Bio, validation.Length(0, 500)),
		validation.Field(&u.Website, is.URL),
		validation.Field(&u.Location, validation.Length(0, 100)),
		validation.Field(&u.BirthPlace, validation.Length(0, 100)),
		validation.Field(&u.BloodType, validation.In(bloodTypes...)),
		validation.Field(&u.LicenseNumber, validation.Length(0, 50)),
		validation.Field(&u.Specialization, validation.Length(0, 100)),
		validation.Field(&u.YearsOfExperience, validation.Min(0), validation.Max(80)),
		validation.Field(&u.Visibility, validation.In(models.VisibilityPublic, models.VisibilityPrivate, models.VisibilityFriends)),
	))
}

func (u *ProfileUpdate) hasPersonal() bool {
	return u.FirstName != nil || u.LastName != nil || u.Phone != nil || u.DateOfBirth != nil
}

func (u *ProfileUpdate) applyPersonal(identity *models.Identity) models.PersonalFields {
	f := models.PersonalFields{
		FirstName:   identity.FirstName,
		LastName:    identity.LastName,
		Phone:       identity.Phone,
		DateOfBirth: identity.DateOfBirth,
	}
	set(&f.FirstName, u.FirstName)
	set(&f.LastName, u.LastName)
	set(&f.Phone, u.Phone)
	if u.DateOfBirth != nil {
		f.DateOfBirth = u.DateOfBirth
	}
	return f
}

func (u *ProfileUpdate) applyProfile(p *models.Profile) {
	set(&p.Bio, u.Bio)
	set(&p.Website, u.Website)
	set(&p.Location, u.Location)
	set(&p.BirthPlace, u.BirthPlace)
	set(&p.BloodType, u.BloodType)
	set(&p.Allergies, u.Allergies)
	set(&p.MedicalHistory, u.MedicalHistory)
	set(&p.CurrentMedications, u.CurrentMedications)
	set(&p.LicenseNumber, u.LicenseNumber)
	set(&p.Specialization, u.Specialization)
	set(&p.YearsOfExperience, u.YearsOfExperience)
	set(&p.Education, u.Education)
	set(&p.Certifications, u.Certifications)
	set(&p.Visibility, u.Visibility)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func equals(want, msg string) validation.RuleFunc {
	return func(value any) error {
		if s, _ := value.(string); s != want {
			return errors.New(msg)
		}
		return nil
	}
}

func notInFuture(now time.Time) validation.RuleFunc {
	return func(value any) error {
		var t *time.Time
		switch v := value.(type) {
		case *time.Time:
			t = v
		case time.Time:
			t = &v
		}
		if t != nil && t.After(now) {
			return errors.New("must not be in the future")
		}
		return nil
	}
}

// validationError converts ozzo validation errors into the service's
// ValidationError so the transport can report per-field detail.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for name, e := range fieldErrs {
			fields[name] = e.Error()
		}
		return &common.ValidationError{Fields: fields}
	}
	return err
}
