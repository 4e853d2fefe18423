package device

import (
	"time"

	id "evscan/pkg/domain"
)

// Link associates a user account with a device, granting read access to that
// device's scan history. Unique per (user, device); created on explicit
// linking and removed on explicit unlinking.
type Link struct {
	UserID     id.UserID
	DeviceID   string
	DeviceName string
	LinkedAt   time.Time
}
