//go:build integration

package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"evscan/internal/device"
	id "evscan/pkg/domain"
	"evscan/pkg/platform/sentinel"
	"evscan/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *device.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = device.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.postgres != nil {
		_ = s.postgres.DB.Close()
		_ = s.postgres.Container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
}

func (s *PostgresStoreSuite) newLink(userID id.UserID, deviceID string) device.Link {
	return device.Link{
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: deviceID,
		LinkedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	userID := id.NewUserID()

	s.Require().NoError(s.store.Save(ctx, s.newLink(userID, "EV-1001")))

	link, err := s.store.Find(ctx, userID, "EV-1001")
	s.Require().NoError(err)
	s.Equal(userID, link.UserID)
	s.Equal("EV-1001", link.DeviceID)

	_, err = s.store.Find(ctx, userID, "EV-9999")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.Find(ctx, id.NewUserID(), "EV-1001")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSaveDuplicateConflicts() {
	ctx := context.Background()
	userID := id.NewUserID()

	s.Require().NoError(s.store.Save(ctx, s.newLink(userID, "EV-1001")))
	s.ErrorIs(s.store.Save(ctx, s.newLink(userID, "EV-1001")), sentinel.ErrConflict)

	// A different user may link the same device.
	s.NoError(s.store.Save(ctx, s.newLink(id.NewUserID(), "EV-1001")))
}

func (s *PostgresStoreSuite) TestListByUserOrdered() {
	ctx := context.Background()
	userID := id.NewUserID()

	for _, deviceID := range []string{"EV-3003", "EV-1001", "EV-2002"} {
		s.Require().NoError(s.store.Save(ctx, s.newLink(userID, deviceID)))
	}

	links, err := s.store.ListByUser(ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(links, 3)
	s.Equal("EV-1001", links[0].DeviceID)
	s.Equal("EV-2002", links[1].DeviceID)
	s.Equal("EV-3003", links[2].DeviceID)
}

func (s *PostgresStoreSuite) TestDelete() {
	ctx := context.Background()
	userID := id.NewUserID()

	s.Require().NoError(s.store.Save(ctx, s.newLink(userID, "EV-1001")))
	s.Require().NoError(s.store.Delete(ctx, userID, "EV-1001"))
	s.ErrorIs(s.store.Delete(ctx, userID, "EV-1001"), sentinel.ErrNotFound)
}
