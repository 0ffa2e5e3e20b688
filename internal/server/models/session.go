package models

import "time"

// DeviceClass is the coarse device type derived from a user agent.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "Mobile"
	DeviceTablet  DeviceClass = "Tablet"
	DeviceDesktop DeviceClass = "Desktop"
)

// Session is the audit record of one login. It is never hard-deleted;
// logout and revocation only clear IsActive.
type Session struct {
	ID           string
	IdentityID   string
	SessionKey   string
	IPAddress    string
	UserAgent    string
	DeviceClass  DeviceClass
	Location     string
	IsActive     bool
	CreatedAt    time.Time
	LastActivity time.Time
}

// DeviceContext is what the transport knows about the calling device.
type DeviceContext struct {
	IPAddress string
	UserAgent string
	Location  string
}
