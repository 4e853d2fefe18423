package device

import (
	"context"
	"errors"
	"sort"
	"time"

	"evscan/internal/audit"
	id "evscan/pkg/domain"
	dErrors "evscan/pkg/domain-errors"
	"evscan/pkg/platform/sentinel"
	"evscan/pkg/requestcontext"
)

// AuditPublisher records link lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service manages device links and acts as the authorization gate for device
// data. Denials are returned decisions, never side effects; the caller decides
// how to surface them.
type Service struct {
	store   Store
	auditor AuditPublisher
}

// NewService wires the gate. auditor may be nil.
func NewService(store Store, auditor AuditPublisher) *Service {
	return &Service{store: store, auditor: auditor}
}

// Authorize decides whether a principal may perform action on a device's data.
//
// Scanner principals write scan data for any device they present credentials
// for (credential checks happen at the transport boundary) and never read.
// User principals read only devices they hold a link for and never write.
func (s *Service) Authorize(ctx context.Context, principal id.Principal, deviceID string, action id.Action) error {
	switch principal.Kind {
	case id.PrincipalScanner:
		if action == id.ActionWrite {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "scanner credentials cannot read device data")
	case id.PrincipalUser:
		if action != id.ActionRead {
			return dErrors.New(dErrors.CodeForbidden, "users cannot submit scan data directly")
		}
		_, err := s.store.Find(ctx, principal.UserID, deviceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeForbidden, "device not linked to this user")
			}
			return dErrors.Wrap(dErrors.CodeInternal, "device link lookup failed", err)
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeForbidden, "unknown principal kind")
	}
}

// AuthorizedDevices lists the device IDs a principal may read.
func (s *Service) AuthorizedDevices(ctx context.Context, principal id.Principal) ([]string, error) {
	if !principal.IsUser() {
		return nil, dErrors.New(dErrors.CodeForbidden, "scanner credentials cannot read device data")
	}
	links, err := s.store.ListByUser(ctx, principal.UserID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "device link lookup failed", err)
	}
	deviceIDs := make([]string, 0, len(links))
	for _, link := range links {
		deviceIDs = append(deviceIDs, link.DeviceID)
	}
	sort.Strings(deviceIDs)
	return deviceIDs, nil
}

// LinkedDevices returns the principal's device links. Only user principals
// hold links.
func (s *Service) LinkedDevices(ctx context.Context, principal id.Principal) ([]Link, error) {
	if !principal.IsUser() {
		return nil, dErrors.New(dErrors.CodeForbidden, "scanner credentials cannot read device data")
	}
	return s.ListByUser(ctx, principal.UserID)
}

// Link grants the user read access to a device. The device name defaults to
// the device ID when the caller leaves it empty.
func (s *Service) Link(ctx context.Context, userID id.UserID, deviceID, deviceName string) (*Link, error) {
	if deviceID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "device_id is required")
	}
	if deviceName == "" {
		deviceName = deviceID
	}
	link := Link{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		LinkedAt:   time.Now().UTC(),
	}
	if err := s.store.Save(ctx, link); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "device already linked to this user")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to link device", err)
	}
	s.audit(ctx, audit.EventDeviceLinked, userID, deviceID)
	return &link, nil
}

// Unlink removes the user's read access to a device.
func (s *Service) Unlink(ctx context.Context, userID id.UserID, deviceID string) error {
	if err := s.store.Delete(ctx, userID, deviceID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "device not linked to this user")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "failed to unlink device", err)
	}
	s.audit(ctx, audit.EventDeviceUnlinked, userID, deviceID)
	return nil
}

func (s *Service) audit(ctx context.Context, action audit.Action, userID id.UserID, deviceID string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    action,
		UserID:    userID,
		DeviceID:  deviceID,
		Outcome:   "ok",
		RequestID: requestcontext.RequestID(ctx),
	})
}

// ListByUser returns the user's device links sorted by device ID.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]Link, error) {
	links, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "device link lookup failed", err)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].DeviceID < links[j].DeviceID })
	return links, nil
}
