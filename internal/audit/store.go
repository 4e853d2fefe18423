package audit

import "context"

// Store is an append-only sink for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByDevice(ctx context.Context, deviceID string) ([]Event, error)
}
