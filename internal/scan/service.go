package scan

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"evscan/internal/audit"
	"evscan/internal/device"
	"evscan/internal/scan/metrics"
	"evscan/internal/spec"
	id "evscan/pkg/domain"
	dErrors "evscan/pkg/domain-errors"
	"evscan/pkg/platform/sentinel"
	"evscan/pkg/requestcontext"
)

// DeviceAuthorizer is the authorization gate consulted before any read or
// write of a device's data.
type DeviceAuthorizer interface {
	Authorize(ctx context.Context, principal id.Principal, deviceID string, action id.Action) error
	AuthorizedDevices(ctx context.Context, principal id.Principal) ([]string, error)
	LinkedDevices(ctx context.Context, principal id.Principal) ([]device.Link, error)
}

// AuditPublisher records ingestion and access events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the ingestion pipeline: authorize, validate, score,
// persist, report. It also serves the authorized read path.
type Service struct {
	validator *Validator
	scorer    *Scorer
	gate      DeviceAuthorizer
	store     Store
	cache     LatestCache
	auditor   AuditPublisher
	metrics   *metrics.Metrics
	workers   int
}

// NewService wires the coordinator. cache and auditor may be nil; workers
// bounds batch fan-out and falls back to serial processing when < 1.
func NewService(
	registry *spec.Registry,
	gate DeviceAuthorizer,
	store Store,
	cache LatestCache,
	auditor AuditPublisher,
	m *metrics.Metrics,
	workers int,
) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		validator: NewValidator(registry),
		scorer:    NewScorer(registry),
		gate:      gate,
		store:     store,
		cache:     cache,
		auditor:   auditor,
		metrics:   m,
		workers:   workers,
	}
}

// IngestSingle runs one payload through the pipeline. On success it returns
// the assessment; rejections come back as typed domain errors so the
// transport layer can distinguish permission problems from malformed data.
func (s *Service) IngestSingle(ctx context.Context, principal id.Principal, payload Payload) (*HealthAssessment, error) {
	item := s.ingestOne(ctx, principal, payload, 0)
	if item.Accepted {
		return item.Assessment, nil
	}
	return nil, rejectionError(item)
}

// IngestBatch processes each payload independently through the same pipeline.
// One record's failure never aborts or corrupts its siblings; persistence is
// per-record atomic, so a later rejection never rolls back an earlier commit.
// Results preserve input order.
func (s *Service) IngestBatch(ctx context.Context, principal id.Principal, payloads []Payload) (*BatchResult, error) {
	s.metrics.ObserveBatchSize(len(payloads))

	items := make([]ItemResult, len(payloads))
	g := &errgroup.Group{}
	g.SetLimit(s.workers)
	for i, payload := range payloads {
		i, payload := i, payload
		g.Go(func() error {
			items[i] = s.ingestOne(ctx, principal, payload, i)
			return nil
		})
	}
	// Workers report per-item outcomes, never errors; nothing to propagate.
	_ = g.Wait()

	result := &BatchResult{
		Items:            items,
		RejectedByReason: make(map[RejectReason]int),
	}
	for _, item := range items {
		if item.Accepted {
			result.Accepted++
		} else {
			result.Rejected++
			result.RejectedByReason[item.Reason]++
		}
	}

	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:    audit.EventBatchProcessed,
			Principal: principal.ScannerID,
			RequestID: requestcontext.RequestID(ctx),
			Outcome:   "processed",
		})
	}
	return result, nil
}

// ingestOne is the shared pipeline: authorize write, validate, score, persist
// atomically, audit. Every exit records its outcome metric.
func (s *Service) ingestOne(ctx context.Context, principal id.Principal, payload Payload, index int) ItemResult {
	if err := s.gate.Authorize(ctx, principal, payload.DeviceID, id.ActionWrite); err != nil {
		s.metrics.IncrementOutcome("rejected", string(ReasonUnauthorized))
		s.audit(ctx, audit.EventAccessDenied, principal, payload.DeviceID, "", string(ReasonUnauthorized))
		return ItemResult{
			Index:  index,
			Reason: ReasonUnauthorized,
			Errors: []StructuralError{{Field: "device_id", Reason: "write not authorized"}},
		}
	}

	record, validation := s.validator.Validate(payload, requestcontext.Now(ctx))
	if !validation.Valid() {
		s.metrics.IncrementOutcome("rejected", string(ReasonStructural))
		s.audit(ctx, audit.EventScanRejected, principal, payload.DeviceID, "", string(ReasonStructural))
		return ItemResult{
			Index:  index,
			Reason: ReasonStructural,
			Errors: validation.Structural,
		}
	}

	assessment := s.scorer.Score(*record, validation)

	start := time.Now()
	scanID, err := s.store.Save(ctx, *record, assessment)
	s.metrics.ObserveStoreLatency(time.Since(start))
	if err != nil {
		// Fatal for this record only; retry policy belongs to the caller.
		s.metrics.IncrementOutcome("rejected", string(ReasonPersistence))
		s.audit(ctx, audit.EventScanRejected, principal, record.DeviceID, record.ID.String(), string(ReasonPersistence))
		return ItemResult{
			Index:  index,
			Reason: ReasonPersistence,
			Errors: []StructuralError{{Field: "record", Reason: "persistence failed"}},
		}
	}
	// A resubmission keeps the stored row's original id; report that one.
	record.ID = scanID
	assessment.ScanID = scanID

	s.cacheLatest(ctx, *record, assessment)

	s.metrics.IncrementOutcome("accepted", "")
	s.metrics.IncrementLevel(string(assessment.Level))
	s.audit(ctx, audit.EventScanAccepted, principal, record.DeviceID, scanID.String(), string(assessment.Level))

	return ItemResult{
		Index:      index,
		Accepted:   true,
		ScanID:     scanID,
		Assessment: &assessment,
	}
}

// cacheLatest refreshes the per-device cache entry after an accepted ingest.
// Backfilled records and out-of-order batch siblings must not displace a
// cached entry with a newer scan timestamp. Best effort; reads fall back to
// the store on a stale or missing entry.
func (s *Service) cacheLatest(ctx context.Context, record ScanRecord, assessment HealthAssessment) {
	if s.cache == nil {
		return
	}
	if cached, err := s.cache.GetLatest(ctx, record.DeviceID); err == nil &&
		cached.Record.ScanTimestamp.After(record.ScanTimestamp) {
		return
	}
	_ = s.cache.SetLatest(ctx, record.DeviceID, Assessed{Record: record, Assessment: assessment})
}

// ListAssessments serves the dashboard read path: the principal's authorized
// devices filtered by the query, each record paired with its recomputed
// assessment.
func (s *Service) ListAssessments(ctx context.Context, principal id.Principal, q Query) ([]Assessed, int, error) {
	deviceIDs, err := s.gate.AuthorizedDevices(ctx, principal)
	if err != nil {
		return nil, 0, err
	}
	if q.DeviceID != "" {
		if err := s.gate.Authorize(ctx, principal, q.DeviceID, id.ActionRead); err != nil {
			return nil, 0, err
		}
	}
	if len(deviceIDs) == 0 {
		return []Assessed{}, 0, nil
	}

	records, total, err := s.store.ListByDevices(ctx, deviceIDs, q)
	if err != nil {
		return nil, 0, dErrors.Wrap(dErrors.CodeInternal, "failed to list scan records", err)
	}

	assessed := make([]Assessed, 0, len(records))
	for _, record := range records {
		assessed = append(assessed, s.assess(record))
	}
	return assessed, total, nil
}

// LatestByDevice returns the most recent assessment for one device, serving
// from the cache when warm.
func (s *Service) LatestByDevice(ctx context.Context, principal id.Principal, deviceID string) (*Assessed, error) {
	if err := s.gate.Authorize(ctx, principal, deviceID, id.ActionRead); err != nil {
		s.audit(ctx, audit.EventAccessDenied, principal, deviceID, "", string(ReasonUnauthorized))
		return nil, err
	}

	entry, err := s.latest(ctx, deviceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no scan data found for this device")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load latest scan", err)
	}
	return entry, nil
}

// latest serves one device's most recent assessment, cache first, filling the
// cache on a store hit. Returns sentinel.ErrNotFound for a device with no data.
func (s *Service) latest(ctx context.Context, deviceID string) (*Assessed, error) {
	if s.cache != nil {
		if entry, err := s.cache.GetLatest(ctx, deviceID); err == nil {
			return entry, nil
		}
	}

	record, err := s.store.LatestByDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	entry := s.assess(*record)
	if s.cache != nil {
		_ = s.cache.SetLatest(ctx, deviceID, entry)
	}
	return &entry, nil
}

// DeviceStatuses returns the fleet view: every device linked to the principal
// with its latest assessment. Devices that have not reported yet still appear,
// with no scan attached.
func (s *Service) DeviceStatuses(ctx context.Context, principal id.Principal) ([]DeviceStatus, error) {
	links, err := s.gate.LinkedDevices(ctx, principal)
	if err != nil {
		return nil, err
	}

	statuses := make([]DeviceStatus, 0, len(links))
	for _, link := range links {
		status := DeviceStatus{DeviceID: link.DeviceID, DeviceName: link.DeviceName}
		entry, err := s.latest(ctx, link.DeviceID)
		switch {
		case err == nil:
			ts := entry.Record.ScanTimestamp
			status.Latest = entry
			status.LastSeen = &ts
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load latest scan", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// AnalyticsSummary aggregates scan activity across the principal's linked
// devices.
func (s *Service) AnalyticsSummary(ctx context.Context, principal id.Principal) (*Summary, error) {
	deviceIDs, err := s.gate.AuthorizedDevices(ctx, principal)
	if err != nil {
		return nil, err
	}

	summary := &Summary{TotalDevices: len(deviceIDs)}
	if len(deviceIDs) == 0 {
		return summary, nil
	}

	// Limit 1 still reports the pre-pagination total and hands back the
	// newest record across all devices.
	records, total, err := s.store.ListByDevices(ctx, deviceIDs, Query{Limit: 1})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to list scan records", err)
	}
	summary.TotalScans = total
	if len(records) > 0 {
		ts := records[0].ScanTimestamp
		summary.LastScanTimestamp = &ts
	}

	for _, deviceID := range deviceIDs {
		entry, err := s.latest(ctx, deviceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load latest scan", err)
		}
		if entry.Assessment.Level == LevelFair || entry.Assessment.Level == LevelPoor {
			summary.DevicesWithIssues++
		}
	}
	return summary, nil
}

// GetAssessment returns one scan record by ID, gated on read access to its
// device.
func (s *Service) GetAssessment(ctx context.Context, principal id.Principal, scanID id.ScanID) (*Assessed, error) {
	record, err := s.store.FindByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "scan data not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "failed to load scan record", err)
	}
	if err := s.gate.Authorize(ctx, principal, record.DeviceID, id.ActionRead); err != nil {
		// Hide the record's existence from unauthorized principals.
		return nil, dErrors.New(dErrors.CodeNotFound, "scan data not found")
	}
	entry := s.assess(*record)
	return &entry, nil
}

// assess recomputes validation and scoring from stored values. Assessments
// stay derivable from the record alone, so this always matches what ingestion
// produced for unchanged data.
func (s *Service) assess(record ScanRecord) Assessed {
	validation := s.validator.Revalidate(record)
	return Assessed{
		Record:     record,
		Assessment: s.scorer.Score(record, validation),
	}
}

func (s *Service) audit(ctx context.Context, action audit.Action, principal id.Principal, deviceID, scanID, outcome string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    action,
		Principal: principal.ScannerID,
		UserID:    principal.UserID,
		DeviceID:  deviceID,
		ScanID:    scanID,
		Outcome:   outcome,
		RequestID: requestcontext.RequestID(ctx),
	})
}

func rejectionError(item ItemResult) error {
	switch item.Reason {
	case ReasonUnauthorized:
		return dErrors.New(dErrors.CodeForbidden, "write not authorized for this device")
	case ReasonPersistence:
		return dErrors.New(dErrors.CodeInternal, "failed to persist scan record")
	default:
		details := make([]string, 0, len(item.Errors))
		for _, e := range item.Errors {
			details = append(details, e.String())
		}
		return dErrors.New(dErrors.CodeBadRequest, "scan payload rejected").WithDetails(details...)
	}
}
