package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	id "evscan/pkg/domain"
	"evscan/pkg/platform/sentinel"
)

// InMemoryStore keeps scan records in process memory. It backs unit tests and
// local development; production uses the postgres store.
type InMemoryStore struct {
	mu          sync.RWMutex
	byID        map[id.ScanID]ScanRecord
	byDevice    map[string][]id.ScanID
	byDeviceTS  map[string]id.ScanID
	assessments map[id.ScanID]HealthAssessment
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[id.ScanID]ScanRecord),
		byDevice:    make(map[string][]id.ScanID),
		byDeviceTS:  make(map[string]id.ScanID),
		assessments: make(map[id.ScanID]HealthAssessment),
	}
}

func deviceTSKey(deviceID string, ts time.Time) string {
	return deviceID + "|" + ts.UTC().Format(time.RFC3339Nano)
}

func (s *InMemoryStore) Save(_ context.Context, record ScanRecord, assessment HealthAssessment) (id.ScanID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := deviceTSKey(record.DeviceID, record.ScanTimestamp)
	if existing, ok := s.byDeviceTS[key]; ok {
		// Resubmission for the same (device, timestamp) replaces the earlier
		// record and keeps its id.
		record.ID = existing
		assessment.ScanID = existing
		s.byID[existing] = record
		s.assessments[existing] = assessment
		return existing, nil
	}

	if _, exists := s.byID[record.ID]; !exists {
		s.byDevice[record.DeviceID] = append(s.byDevice[record.DeviceID], record.ID)
	}
	s.byDeviceTS[key] = record.ID
	s.byID[record.ID] = record
	s.assessments[record.ID] = assessment
	return record.ID, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, scanID id.ScanID) (*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[scanID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

func (s *InMemoryStore) ListByDevices(_ context.Context, deviceIDs []string, q Query) ([]ScanRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []ScanRecord
	for _, deviceID := range deviceIDs {
		if q.DeviceID != "" && deviceID != q.DeviceID {
			continue
		}
		for _, scanID := range s.byDevice[deviceID] {
			record := s.byID[scanID]
			if q.StartDate != nil && record.ScanTimestamp.Before(*q.StartDate) {
				continue
			}
			if q.EndDate != nil && record.ScanTimestamp.After(*q.EndDate) {
				continue
			}
			matches = append(matches, record)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ScanTimestamp.After(matches[j].ScanTimestamp)
	})

	total := len(matches)
	if q.Offset > 0 {
		if q.Offset >= total {
			return nil, total, nil
		}
		matches = matches[q.Offset:]
	}
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}
	return matches, total, nil
}

func (s *InMemoryStore) LatestByDevice(_ context.Context, deviceID string) (*ScanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *ScanRecord
	for _, scanID := range s.byDevice[deviceID] {
		record := s.byID[scanID]
		if latest == nil || record.ScanTimestamp.After(latest.ScanTimestamp) {
			r := record
			latest = &r
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}
