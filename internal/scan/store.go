package scan

import (
	"context"

	id "evscan/pkg/domain"
)

// Store is the persistence boundary for scan records. Save commits one record
// and its assessment as a single atomic unit; records are independent, so
// implementations need no cross-record locking.
//
// Stores return sentinel errors (sentinel.ErrNotFound) which the service
// translates into domain errors.
type Store interface {
	// Save upserts keyed on (device, timestamp): a corrected resubmission
	// replaces the earlier record and keeps its id. The returned ScanID is
	// the canonical one for the stored row.
	Save(ctx context.Context, record ScanRecord, assessment HealthAssessment) (id.ScanID, error)
	FindByID(ctx context.Context, scanID id.ScanID) (*ScanRecord, error)

	// ListByDevices returns records for the given devices, newest first,
	// honoring the query's date range and limit/offset, plus the total count
	// before pagination.
	ListByDevices(ctx context.Context, deviceIDs []string, q Query) ([]ScanRecord, int, error)

	// LatestByDevice returns the most recent record for one device.
	LatestByDevice(ctx context.Context, deviceID string) (*ScanRecord, error)
}
