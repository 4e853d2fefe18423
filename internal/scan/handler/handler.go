package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"evscan/internal/platform/middleware"
	"evscan/internal/scan"
	"evscan/internal/spec"
	"evscan/internal/transport/http/shared"
	id "evscan/pkg/domain"
	dErrors "evscan/pkg/domain-errors"
	"evscan/pkg/requestcontext"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// Service defines the ingestion and read operations the handler delegates to.
type Service interface {
	IngestSingle(ctx context.Context, principal id.Principal, payload scan.Payload) (*scan.HealthAssessment, error)
	IngestBatch(ctx context.Context, principal id.Principal, payloads []scan.Payload) (*scan.BatchResult, error)
	ListAssessments(ctx context.Context, principal id.Principal, q scan.Query) ([]scan.Assessed, int, error)
	LatestByDevice(ctx context.Context, principal id.Principal, deviceID string) (*scan.Assessed, error)
	GetAssessment(ctx context.Context, principal id.Principal, scanID id.ScanID) (*scan.Assessed, error)
	DeviceStatuses(ctx context.Context, principal id.Principal) ([]scan.DeviceStatus, error)
	AnalyticsSummary(ctx context.Context, principal id.Principal) (*scan.Summary, error)
}

// Handler exposes scan ingestion to external scanners and the read path to
// authenticated dashboard users.
type Handler struct {
	logger       *slog.Logger
	service      Service
	registry     *spec.Registry
	jwtValidator middleware.JWTValidator
	scannerKeys  map[string]string
}

func New(
	service Service,
	registry *spec.Registry,
	logger *slog.Logger,
	jwtValidator middleware.JWTValidator,
	scannerKeys map[string]string,
) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		registry:     registry,
		jwtValidator: jwtValidator,
		scannerKeys:  scannerKeys,
	}
}

// Register mounts the external (scanner) and tablet (user) routes.
func (h *Handler) Register(r chi.Router) {
	external := chi.NewRouter()
	external.Use(middleware.RequireScanner(h.scannerKeys, h.logger))
	external.Post("/scan-data", h.handleIngestSingle)
	external.Post("/scan-data/batch", h.handleIngestBatch)
	r.Mount("/external", external)

	tablet := chi.NewRouter()
	tablet.Use(middleware.RequireUser(h.jwtValidator, h.logger))
	tablet.Get("/scan-data", h.handleListScanData)
	tablet.Get("/scan-data/{scanID}", h.handleGetScanData)
	tablet.Get("/device/{deviceID}/latest", h.handleLatestForDevice)
	tablet.Get("/device-status", h.handleDeviceStatus)
	tablet.Get("/analytics/summary", h.handleAnalyticsSummary)
	r.Mount("/tablet", tablet)

	r.Get("/spec", h.handleSpec)
}

func (h *Handler) handleIngestSingle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	var payload scan.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.WarnContext(ctx, "malformed scan payload",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	assessment, err := h.service.IngestSingle(ctx, principal, payload)
	if err != nil {
		h.logger.WarnContext(ctx, "scan rejected",
			"request_id", requestcontext.RequestID(ctx),
			"device_id", payload.DeviceID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, ingestResponse{
		Accepted:   true,
		ScanID:     assessment.ScanID.String(),
		Assessment: toAssessmentDTO(*assessment),
	})
}

func (h *Handler) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if len(req.ScanData) == 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "scan_data array is required"))
		return
	}

	result, err := h.service.IngestBatch(ctx, principal, req.ScanData)
	if err != nil {
		h.logger.ErrorContext(ctx, "batch processing failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toBatchDTO(result))
}

func (h *Handler) handleListScanData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	q, err := parseQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	assessed, total, err := h.service.ListAssessments(ctx, principal, q)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	items := make([]scanDataDTO, 0, len(assessed))
	for _, a := range assessed {
		items = append(items, toScanDataDTO(a))
	}
	shared.WriteJSON(w, http.StatusOK, listResponse{
		ScanData:   items,
		TotalCount: total,
		Limit:      q.Limit,
		Offset:     q.Offset,
		HasMore:    q.Offset+q.Limit < total,
	})
}

func (h *Handler) handleGetScanData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	scanID, err := id.ParseScanID(chi.URLParam(r, "scanID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid scan id"))
		return
	}

	assessed, err := h.service.GetAssessment(ctx, principal, scanID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toScanDataDTO(*assessed))
}

func (h *Handler) handleLatestForDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	assessed, err := h.service.LatestByDevice(ctx, principal, deviceID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toScanDataDTO(*assessed))
}

func (h *Handler) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	statuses, err := h.service.DeviceStatuses(ctx, principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	devices := make([]deviceStatusDTO, 0, len(statuses))
	for _, status := range statuses {
		devices = append(devices, toDeviceStatusDTO(status))
	}
	shared.WriteJSON(w, http.StatusOK, deviceStatusResponse{Devices: devices})
}

func (h *Handler) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		h.missingPrincipal(ctx, w)
		return
	}

	summary, err := h.service.AnalyticsSummary(ctx, principal)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, analyticsSummaryDTO{
		TotalDevices:      summary.TotalDevices,
		TotalScans:        summary.TotalScans,
		DevicesWithIssues: summary.DevicesWithIssues,
		LastScanTimestamp: summary.LastScanTimestamp,
	})
}

// handleSpec serves the read-only parameter specification so clients can
// render forms and validate locally.
func (h *Handler) handleSpec(w http.ResponseWriter, _ *http.Request) {
	categories := h.registry.Categories()
	specification := make(map[string]map[string]parameterSpecDTO, len(categories))
	for _, category := range categories {
		params := h.registry.Category(category)
		dto := make(map[string]parameterSpecDTO, len(params))
		for key, ps := range params {
			dto[key] = toParameterSpecDTO(ps)
		}
		specification[category] = dto
	}
	shared.WriteJSON(w, http.StatusOK, specResponse{
		Version:       h.registry.Version(),
		Categories:    categories,
		Specification: specification,
	})
}

func (h *Handler) missingPrincipal(ctx context.Context, w http.ResponseWriter) {
	// Should never happen when the auth middleware is configured correctly.
	h.logger.ErrorContext(ctx, "principal missing from context despite auth middleware",
		"request_id", requestcontext.RequestID(ctx),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
}

func parseQuery(r *http.Request) (scan.Query, error) {
	q := scan.Query{
		DeviceID: r.URL.Query().Get("device_id"),
		Limit:    defaultPageLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, dErrors.New(dErrors.CodeBadRequest, "invalid limit")
		}
		// Zero would disable pagination entirely; treat it as unset.
		if n == 0 {
			n = defaultPageLimit
		}
		q.Limit = min(n, maxPageLimit)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, dErrors.New(dErrors.CodeBadRequest, "invalid offset")
		}
		q.Offset = n
	}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeBadRequest, "invalid start_date format, use ISO format")
		}
		q.StartDate = &t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeBadRequest, "invalid end_date format, use ISO format")
		}
		q.EndDate = &t
	}
	return q, nil
}

// ----- wire DTOs -----

type batchRequest struct {
	ScanData []scan.Payload `json:"scan_data"`
}

type ingestResponse struct {
	Accepted   bool          `json:"accepted"`
	ScanID     string        `json:"scan_id"`
	Assessment assessmentDTO `json:"assessment"`
}

type assessmentDTO struct {
	SubScores map[string]float64 `json:"sub_scores"`
	Overall   float64            `json:"overall_score"`
	Level     string             `json:"level"`
}

type scanDataDTO struct {
	ScanID        string                           `json:"scan_id"`
	DeviceID      string                           `json:"device_id"`
	ScanTimestamp time.Time                        `json:"scan_timestamp"`
	Categories    map[string]map[string]scan.Value `json:"categories"`
	Health        assessmentDTO                    `json:"health"`
}

type listResponse struct {
	ScanData   []scanDataDTO `json:"scan_data"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
	HasMore    bool          `json:"has_more"`
}

type batchItemDTO struct {
	Index      int                    `json:"index"`
	Accepted   bool                   `json:"accepted"`
	ScanID     string                 `json:"scan_id,omitempty"`
	Assessment *assessmentDTO         `json:"assessment,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Errors     []scan.StructuralError `json:"errors,omitempty"`
}

type batchResponse struct {
	Results          []batchItemDTO `json:"results"`
	Accepted         int            `json:"accepted"`
	Rejected         int            `json:"rejected"`
	RejectedByReason map[string]int `json:"rejected_by_reason"`
}

type deviceStatusDTO struct {
	DeviceID     string       `json:"device_id"`
	DeviceName   string       `json:"device_name"`
	LastSeen     *time.Time   `json:"last_seen"`
	LatestScan   *scanDataDTO `json:"latest_scan"`
	HealthStatus string       `json:"health_status,omitempty"`
}

type deviceStatusResponse struct {
	Devices []deviceStatusDTO `json:"devices"`
}

type analyticsSummaryDTO struct {
	TotalDevices      int        `json:"total_devices"`
	TotalScans        int        `json:"total_scans"`
	DevicesWithIssues int        `json:"devices_with_issues"`
	LastScanTimestamp *time.Time `json:"last_scan_timestamp"`
}

type parameterSpecDTO struct {
	Kind     string   `json:"kind"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Accepted string   `json:"accepted,omitempty"`
	Weight   float64  `json:"weight"`
}

type specResponse struct {
	Version       string                                 `json:"version"`
	Categories    []string                               `json:"categories"`
	Specification map[string]map[string]parameterSpecDTO `json:"specification"`
}

func toAssessmentDTO(a scan.HealthAssessment) assessmentDTO {
	return assessmentDTO{
		SubScores: a.SubScores,
		Overall:   a.Overall,
		Level:     string(a.Level),
	}
}

func toScanDataDTO(a scan.Assessed) scanDataDTO {
	return scanDataDTO{
		ScanID:        a.Record.ID.String(),
		DeviceID:      a.Record.DeviceID,
		ScanTimestamp: a.Record.ScanTimestamp,
		Categories:    a.Record.Categories,
		Health:        toAssessmentDTO(a.Assessment),
	}
}

func toBatchDTO(result *scan.BatchResult) batchResponse {
	items := make([]batchItemDTO, 0, len(result.Items))
	for _, item := range result.Items {
		dto := batchItemDTO{
			Index:    item.Index,
			Accepted: item.Accepted,
			Reason:   string(item.Reason),
			Errors:   item.Errors,
		}
		if item.Accepted {
			dto.ScanID = item.ScanID.String()
			if item.Assessment != nil {
				a := toAssessmentDTO(*item.Assessment)
				dto.Assessment = &a
			}
		}
		items = append(items, dto)
	}
	byReason := make(map[string]int, len(result.RejectedByReason))
	for reason, count := range result.RejectedByReason {
		byReason[string(reason)] = count
	}
	return batchResponse{
		Results:          items,
		Accepted:         result.Accepted,
		Rejected:         result.Rejected,
		RejectedByReason: byReason,
	}
}

func toDeviceStatusDTO(status scan.DeviceStatus) deviceStatusDTO {
	dto := deviceStatusDTO{
		DeviceID:   status.DeviceID,
		DeviceName: status.DeviceName,
		LastSeen:   status.LastSeen,
	}
	if status.Latest != nil {
		latest := toScanDataDTO(*status.Latest)
		dto.LatestScan = &latest
		dto.HealthStatus = string(status.Latest.Assessment.Level)
	}
	return dto
}

func toParameterSpecDTO(ps spec.ParameterSpec) parameterSpecDTO {
	dto := parameterSpecDTO{
		Kind:     string(ps.Kind),
		Accepted: ps.Accepted,
		Weight:   ps.Weight,
	}
	if ps.Kind == spec.KindNumeric {
		minV, maxV := ps.Min, ps.Max
		dto.Min = &minV
		if !math.IsInf(maxV, 1) {
			dto.Max = &maxV
		}
	}
	return dto
}
