//go:build integration

package scan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"evscan/internal/scan"
	"evscan/internal/spec"
	id "evscan/pkg/domain"
	"evscan/pkg/platform/sentinel"
	"evscan/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *scan.RedisLatestCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = scan.NewRedisLatestCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) TearDownSuite() {
	if s.redis != nil {
		_ = s.redis.Client.Close()
		_ = s.redis.Container.Terminate(context.Background())
	}
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func sampleEntry(deviceID string) scan.Assessed {
	scanID := id.NewScanID()
	return scan.Assessed{
		Record: scan.ScanRecord{
			ID:            scanID,
			DeviceID:      deviceID,
			ScanTimestamp: time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC),
			Categories: map[string]map[string]scan.Value{
				spec.CategoryBattery: {
					"soh":         scan.NumberValue(95),
					"case_status": scan.TextValue(spec.StatusNormal),
				},
			},
			CreatedAt: time.Date(2026, 8, 14, 9, 31, 0, 0, time.UTC),
		},
		Assessment: scan.HealthAssessment{
			ScanID:    scanID,
			DeviceID:  deviceID,
			SubScores: map[string]float64{spec.CategoryBattery: 100},
			Overall:   100,
			Level:     scan.LevelExcellent,
		},
	}
}

func (s *RedisCacheSuite) TestSetAndGetLatest() {
	ctx := context.Background()
	entry := sampleEntry("EV-1001")

	s.Require().NoError(s.cache.SetLatest(ctx, "EV-1001", entry))

	got, err := s.cache.GetLatest(ctx, "EV-1001")
	s.Require().NoError(err)
	s.Equal(entry.Record.ID, got.Record.ID)
	s.Equal(entry.Record.Categories, got.Record.Categories)
	s.Equal(entry.Assessment.Overall, got.Assessment.Overall)
	s.Equal(entry.Assessment.Level, got.Assessment.Level)
}

func (s *RedisCacheSuite) TestGetLatestMiss() {
	_, err := s.cache.GetLatest(context.Background(), "EV-9999")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.SetLatest(ctx, "EV-1001", sampleEntry("EV-1001")))
	s.Require().NoError(s.cache.Invalidate(ctx, "EV-1001"))

	_, err := s.cache.GetLatest(ctx, "EV-1001")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisCacheSuite) TestCorruptEntryReadsAsMiss() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, "evscan:latest:EV-1001", "not-json", time.Minute).Err())

	_, err := s.cache.GetLatest(ctx, "EV-1001")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
