// Package access decides whether a subject may perform an action on a
// resource. Authorize is a total function over a fixed rule table and has no
// side effects.
package access

import (
	"slices"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

type Action string

const (
	ActionViewProfile    Action = "profile.view"
	ActionListSessions   Action = "sessions.list"
	ActionListUsers      Action = "users.list"
	ActionViewStatistics Action = "users.statistics"

	ActionEditProfile    Action = "profile.edit"
	ActionChangePassword Action = "password.change"
	ActionRevokeSession  Action = "session.revoke"
	ActionLogout         Action = "session.logout"

	ActionVerifyUser     Action = "user.verify"
	ActionDeactivateUser Action = "user.deactivate"
	ActionActivateUser   Action = "user.activate"
	ActionChangeRole     Action = "user.change_role"
	ActionDeleteUser     Action = "user.delete"

	ActionWriteClinicalRecord Action = "clinical_record.write"
	ActionWritePatientRecord  Action = "patient_record.write"
)

// Rule describes who may perform an action.
//
// A read-only action is allowed for any authenticated active subject. Any
// other action is allowed when the subject owns the resource and SelfService
// is set, or when the subject's role is listed in Roles. RequiresVerified is
// checked last.
type Rule struct {
	ReadOnly         bool
	SelfService      bool
	Roles            []models.Role
	RequiresVerified bool
}

var adminOnly = []models.Role{models.RoleAdmin}

var rules = map[Action]Rule{
	ActionViewProfile:    {ReadOnly: true},
	ActionListSessions:   {ReadOnly: true},
	ActionListUsers:      {ReadOnly: true},
	ActionViewStatistics: {ReadOnly: true},

	ActionEditProfile:    {SelfService: true},
	ActionChangePassword: {SelfService: true},
	ActionRevokeSession:  {SelfService: true, Roles: adminOnly},
	ActionLogout:         {SelfService: true},

	ActionVerifyUser:     {Roles: adminOnly},
	ActionDeactivateUser: {Roles: adminOnly},
	ActionActivateUser:   {Roles: adminOnly},
	ActionChangeRole:     {Roles: adminOnly},
	ActionDeleteUser:     {Roles: adminOnly},

	ActionWriteClinicalRecord: {Roles: []models.Role{models.RoleDoctor, models.RoleAdmin}, RequiresVerified: true},
	ActionWritePatientRecord:  {Roles: []models.Role{models.RolePatient, models.RoleAdmin}},
}

// Subject is the caller as seen by the kernel.
type Subject struct {
	ID        string
	Role      models.Role
	Verified  bool
	Active    bool
	SessionID string
}

// Resource identifies what the action targets. OwnerID is empty for
// actions that do not target an identity-owned resource.
type Resource struct {
	OwnerID string
}

// Decision carries the verdict and a short machine-readable reason.
type Decision struct {
	Allowed bool
	Reason  string
}

const (
	ReasonInactive        = "subject inactive"
	ReasonUnknownAction   = "unknown action"
	ReasonUnauthenticated = "not authenticated"
	ReasonReadOnly        = "read-only action"
	ReasonRole            = "role not permitted"
	ReasonNotVerified     = "subject not verified"
	ReasonOwner           = "resource owner"
	ReasonRoleGranted     = "role permitted"
)

func deny(reason string) Decision  { return Decision{Reason: reason} }
func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }

// Lookup returns the rule for action.
func Lookup(action Action) (Rule, bool) {
	r, ok := rules[action]
	return r, ok
}

// Authorize evaluates action for subject against resource.
func Authorize(subject Subject, action Action, resource Resource) Decision {
	if !subject.Active {
		return deny(ReasonInactive)
	}

	rule, ok := rules[action]
	if !ok {
		return deny(ReasonUnknownAction)
	}

	if subject.ID == "" {
		return deny(ReasonUnauthenticated)
	}

	if rule.ReadOnly {
		return allow(ReasonReadOnly)
	}

	owner := rule.SelfService && resource.OwnerID != "" && resource.OwnerID == subject.ID
	if !owner && !slices.Contains(rule.Roles, subject.Role) {
		return deny(ReasonRole)
	}

	if rule.RequiresVerified && !subject.Verified {
		return deny(ReasonNotVerified)
	}

	if owner {
		return allow(ReasonOwner)
	}
	return allow(ReasonRoleGranted)
}

// Allowed is Authorize reduced to a bool.
func Allowed(subject Subject, action Action, resource Resource) bool {
	return Authorize(subject, action, resource).Allowed
}
