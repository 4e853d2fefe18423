package audit

import (
	"time"

	id "evscan/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	Principal string
	UserID    id.UserID
	DeviceID  string
	ScanID    string
	Outcome   string
	Reason    string
	RequestID string
}

// Action names an auditable event.
type Action string

const (
	EventScanAccepted   Action = "scan_accepted"
	EventScanRejected   Action = "scan_rejected"
	EventBatchProcessed Action = "batch_processed"
	EventDeviceLinked   Action = "device_linked"
	EventDeviceUnlinked Action = "device_unlinked"
	EventAccessDenied   Action = "access_denied"
)
