package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/medaccount/internal/api"
	"github.com/dmitrijs2005/medaccount/internal/netx"
)

const (
	timeLayout   = "2006-01-02 15:04"
	maxImageSize = 5 << 20
)

func (a *App) Sessions(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	sessions, err := a.client.ListSessions(ctx)
	if err != nil {
		return err
	}
	a.printSessions(sessions)
	return nil
}

func (a *App) printSessions(sessions []api.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(a.out, "No sessions")
		return
	}

	current := a.client.Tokens().SessionID

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEVICE\tIP\tLOCATION\tLAST ACTIVITY\tSTATUS")
	for _, s := range sessions {
		state := "ended"
		if s.IsActive {
			state = "active"
		}
		if s.ID == current {
			state += " (this)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.DeviceClass, s.IPAddress, s.Location, s.LastActivity.Local().Format(timeLayout), state)
	}
	_ = tw.Flush()
}

func (a *App) Revoke(ctx context.Context, sessionID string) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if err := a.client.RevokeSession(ctx, sessionID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session %s revoked\n", sessionID)
	return nil
}

func (a *App) Dashboard(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	d, err := a.client.Dashboard(ctx)
	if err != nil {
		return err
	}

	id := d.Identity
	fmt.Fprintf(a.out, "%s <%s>, role %s\n", id.Username, id.Email, id.Role)
	if id.LastLoginAt != nil {
		fmt.Fprintf(a.out, "Last login: %s from %s\n", id.LastLoginAt.Local().Format(timeLayout), id.LastLoginIP)
	}
	fmt.Fprintf(a.out, "Sessions: %d active of %d\n", d.ActiveSessions, d.TotalSessions)
	a.printSessions(d.RecentSessions)
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	p, err := a.client.GetProfile(ctx, "")
	if err != nil {
		return err
	}

	rows := [][2]string{
		{"name", strings.TrimSpace(p.Identity.FirstName + " " + p.Identity.LastName)},
		{"email", p.Identity.Email},
		{"phone", p.Identity.Phone},
		{"date_of_birth", p.Identity.DateOfBirth},
		{"bio", p.Profile.Bio},
		{"website", p.Profile.Website},
		{"location", p.Profile.Location},
		{"birth_place", p.Profile.BirthPlace},
		{"blood_type", p.Profile.BloodType},
		{"allergies", p.Profile.Allergies},
		{"medical_history", p.Profile.MedicalHistory},
		{"current_medications", p.Profile.CurrentMedications},
		{"license_number", p.Profile.LicenseNumber},
		{"specialization", p.Profile.Specialization},
		{"education", p.Profile.Education},
		{"certifications", p.Profile.Certifications},
		{"visibility", p.Profile.Visibility},
		{"image", p.ProfileImageURL},
	}
	if p.Profile.YearsOfExperience > 0 {
		rows = append(rows, [2]string{"years_of_experience", strconv.Itoa(p.Profile.YearsOfExperience)})
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		if r[1] != "" {
			fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
		}
	}
	return tw.Flush()
}

// profileFields maps setprofile field names onto the partial update request.
var profileFields = map[string]func(req *api.UpdateProfileRequest, v string) error{
	"first_name":          func(r *api.UpdateProfileRequest, v string) error { r.FirstName = &v; return nil },
	"last_name":           func(r *api.UpdateProfileRequest, v string) error { r.LastName = &v; return nil },
	"phone":               func(r *api.UpdateProfileRequest, v string) error { r.Phone = &v; return nil },
	"date_of_birth":       func(r *api.UpdateProfileRequest, v string) error { r.DateOfBirth = &v; return nil },
	"bio":                 func(r *api.UpdateProfileRequest, v string) error { r.Bio = &v; return nil },
	"website":             func(r *api.UpdateProfileRequest, v string) error { r.Website = &v; return nil },
	"location":            func(r *api.UpdateProfileRequest, v string) error { r.Location = &v; return nil },
	"birth_place":         func(r *api.UpdateProfileRequest, v string) error { r.BirthPlace = &v; return nil },
	"blood_type":          func(r *api.UpdateProfileRequest, v string) error { r.BloodType = &v; return nil },
	"allergies":           func(r *api.UpdateProfileRequest, v string) error { r.Allergies = &v; return nil },
	"medical_history":     func(r *api.UpdateProfileRequest, v string) error { r.MedicalHistory = &v; return nil },
	"current_medications": func(r *api.UpdateProfileRequest, v string) error { r.CurrentMedications = &v; return nil },
	"license_number":      func(r *api.UpdateProfileRequest, v string) error { r.LicenseNumber = &v; return nil },
	"specialization":      func(r *api.UpdateProfileRequest, v string) error { r.Specialization = &v; return nil },
	"education":           func(r *api.UpdateProfileRequest, v string) error { r.Education = &v; return nil },
	"certifications":      func(r *api.UpdateProfileRequest, v string) error { r.Certifications = &v; return nil },
	"visibility":          func(r *api.UpdateProfileRequest, v string) error { r.Visibility = &v; return nil },
	"years_of_experience": func(r *api.UpdateProfileRequest, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("years_of_experience must be a number")
		}
		r.YearsOfExperience = &n
		return nil
	},
}

func profileFieldNames() string {
	names := make([]string, 0, len(profileFields))
	for name := range profileFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (a *App) SetProfile(ctx context.Context, field, value string) error {
	set, ok := profileFields[field]
	if !ok {
		return fmt.Errorf("unknown field %q, expected one of: %s", field, profileFieldNames())
	}

	req := &api.UpdateProfileRequest{}
	if err := set(req, value); err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if _, err := a.client.UpdateProfile(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s\n", field)
	return nil
}

// UploadAvatar sends the image at path to the object store through a
// presigned URL obtained from the server.
func (a *App) UploadAvatar(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) > maxImageSize {
		return fmt.Errorf("image is larger than %d MB", maxImageSize>>20)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%s is not an image (%s)", path, contentType)
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	url, err := a.client.ProfileImageUploadURL(ctx)
	if err != nil {
		return err
	}
	if err := netx.UploadToPresignedURL(ctx, url, contentType, data); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Profile image uploaded")
	return nil
}
