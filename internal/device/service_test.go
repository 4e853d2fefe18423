package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evscan/internal/audit"
	id "evscan/pkg/domain"
	dErrors "evscan/pkg/domain-errors"
)

type captureAuditor struct {
	events []audit.Event
}

func (a *captureAuditor) Emit(_ context.Context, event audit.Event) error {
	a.events = append(a.events, event)
	return nil
}

func TestAuthorizeScannerPrincipal(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	scanner := id.Principal{Kind: id.PrincipalScanner, ScannerID: "field-scanner-1"}

	// Scanners write to any device but never read.
	assert.NoError(t, s.Authorize(context.Background(), scanner, "EV-1001", id.ActionWrite))

	err := s.Authorize(context.Background(), scanner, "EV-1001", id.ActionRead)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
}

func TestAuthorizeUserPrincipal(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	ctx := context.Background()
	userID := id.NewUserID()
	user := id.Principal{Kind: id.PrincipalUser, UserID: userID}

	err := s.Authorize(ctx, user, "EV-1001", id.ActionRead)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))

	_, err = s.Link(ctx, userID, "EV-1001", "garage tester")
	require.NoError(t, err)

	assert.NoError(t, s.Authorize(ctx, user, "EV-1001", id.ActionRead))

	// Links grant reads only, never writes.
	err = s.Authorize(ctx, user, "EV-1001", id.ActionWrite)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))

	// Another user's link grants this user nothing.
	other := id.Principal{Kind: id.PrincipalUser, UserID: id.NewUserID()}
	err = s.Authorize(ctx, other, "EV-1001", id.ActionRead)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
}

func TestAuthorizeUnknownPrincipalKind(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)

	err := s.Authorize(context.Background(), id.Principal{}, "EV-1001", id.ActionRead)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
}

func TestAuthorizedDevicesSorted(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	ctx := context.Background()
	userID := id.NewUserID()

	for _, deviceID := range []string{"EV-3003", "EV-1001", "EV-2002"} {
		_, err := s.Link(ctx, userID, deviceID, "")
		require.NoError(t, err)
	}

	devices, err := s.AuthorizedDevices(ctx, id.Principal{Kind: id.PrincipalUser, UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, []string{"EV-1001", "EV-2002", "EV-3003"}, devices)
}

func TestAuthorizedDevicesScannerForbidden(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)

	_, err := s.AuthorizedDevices(context.Background(), id.Principal{Kind: id.PrincipalScanner})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
}

func TestLinkedDevicesReturnsLinksForUsersOnly(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.Link(ctx, userID, "EV-2002", "Fleet car 2")
	require.NoError(t, err)
	_, err = s.Link(ctx, userID, "EV-1001", "Fleet car 1")
	require.NoError(t, err)

	links, err := s.LinkedDevices(ctx, id.Principal{Kind: id.PrincipalUser, UserID: userID})
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "EV-1001", links[0].DeviceID)
	assert.Equal(t, "Fleet car 1", links[0].DeviceName)
	assert.Equal(t, "EV-2002", links[1].DeviceID)

	_, err = s.LinkedDevices(ctx, id.Principal{Kind: id.PrincipalScanner})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
}

func TestLinkDefaultsNameAndRejectsDuplicates(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	ctx := context.Background()
	userID := id.NewUserID()

	link, err := s.Link(ctx, userID, "EV-1001", "")
	require.NoError(t, err)
	assert.Equal(t, "EV-1001", link.DeviceName)
	assert.False(t, link.LinkedAt.IsZero())

	_, err = s.Link(ctx, userID, "EV-1001", "again")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeConflict))

	_, err = s.Link(ctx, userID, "", "no device")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

func TestUnlink(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.Link(ctx, userID, "EV-1001", "")
	require.NoError(t, err)
	require.NoError(t, s.Unlink(ctx, userID, "EV-1001"))

	err = s.Unlink(ctx, userID, "EV-1001")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}

func TestListByUserSorted(t *testing.T) {
	s := NewService(NewInMemoryStore(), nil)
	ctx := context.Background()
	userID := id.NewUserID()

	for _, deviceID := range []string{"EV-2002", "EV-1001"} {
		_, err := s.Link(ctx, userID, deviceID, "")
		require.NoError(t, err)
	}

	links, err := s.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "EV-1001", links[0].DeviceID)
	assert.Equal(t, "EV-2002", links[1].DeviceID)
}

func TestLinkAndUnlinkEmitAuditEvents(t *testing.T) {
	auditor := &captureAuditor{}
	s := NewService(NewInMemoryStore(), auditor)
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.Link(ctx, userID, "EV-1001", "")
	require.NoError(t, err)
	require.NoError(t, s.Unlink(ctx, userID, "EV-1001"))

	require.Len(t, auditor.events, 2)
	assert.Equal(t, audit.EventDeviceLinked, auditor.events[0].Action)
	assert.Equal(t, audit.EventDeviceUnlinked, auditor.events[1].Action)
	assert.Equal(t, userID, auditor.events[0].UserID)
	assert.Equal(t, "EV-1001", auditor.events[0].DeviceID)
}
