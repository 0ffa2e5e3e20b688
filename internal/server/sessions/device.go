package sessions

import (
	"strings"

	"github.com/dmitrijs2005/medaccount/internal/server/models"
)

// ClassifyDevice maps a user agent to a device class. The checks are ordered:
// an agent that mentions both Mobile and Tablet is a mobile device, and
// anything unrecognised is treated as a desktop.
func ClassifyDevice(userAgent string) models.DeviceClass {
	switch {
	case strings.Contains(userAgent, "Mobile"):
		return models.DeviceMobile
	case strings.Contains(userAgent, "Tablet"):
		return models.DeviceTablet
	default:
		return models.DeviceDesktop
	}
}
