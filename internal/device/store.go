package device

import (
	"context"

	id "evscan/pkg/domain"
)

// Store persists device links. Save returns sentinel.ErrConflict when the
// (user, device) pair already exists; Delete and Find return
// sentinel.ErrNotFound for absent links.
type Store interface {
	Save(ctx context.Context, link Link) error
	Find(ctx context.Context, userID id.UserID, deviceID string) (*Link, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]Link, error)
	Delete(ctx context.Context, userID id.UserID, deviceID string) error
}
