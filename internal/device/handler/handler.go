package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"evscan/internal/device"
	"evscan/internal/platform/middleware"
	"evscan/internal/transport/http/shared"
	id "evscan/pkg/domain"
	dErrors "evscan/pkg/domain-errors"
	"evscan/pkg/requestcontext"
)

// Service defines the device link operations the handler delegates to.
type Service interface {
	Link(ctx context.Context, userID id.UserID, deviceID, deviceName string) (*device.Link, error)
	Unlink(ctx context.Context, userID id.UserID, deviceID string) error
	ListByUser(ctx context.Context, userID id.UserID) ([]device.Link, error)
}

// Handler exposes device link management to authenticated users.
type Handler struct {
	logger       *slog.Logger
	service      Service
	jwtValidator middleware.JWTValidator
}

func New(service Service, logger *slog.Logger, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{logger: logger, service: service, jwtValidator: jwtValidator}
}

// Register mounts the user device routes.
func (h *Handler) Register(r chi.Router) {
	user := chi.NewRouter()
	user.Use(middleware.RequireUser(h.jwtValidator, h.logger))
	user.Get("/devices", h.handleListDevices)
	user.Post("/devices", h.handleLinkDevice)
	user.Delete("/devices/{deviceID}", h.handleUnlinkDevice)
	r.Mount("/user", user)
}

type linkRequest struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

type linkDTO struct {
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	LinkedAt   time.Time `json:"linked_at"`
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	links, err := h.service.ListByUser(ctx, principal.UserID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	devices := make([]linkDTO, 0, len(links))
	for _, link := range links {
		devices = append(devices, linkDTO{
			DeviceID:   link.DeviceID,
			DeviceName: link.DeviceName,
			LinkedAt:   link.LinkedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string][]linkDTO{"devices": devices})
}

func (h *Handler) handleLinkDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid link device request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	link, err := h.service.Link(ctx, principal.UserID, req.DeviceID, req.DeviceName)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, linkDTO{
		DeviceID:   link.DeviceID,
		DeviceName: link.DeviceName,
		LinkedAt:   link.LinkedAt,
	})
}

func (h *Handler) handleUnlinkDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requestcontext.Principal(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	if err := h.service.Unlink(ctx, principal.UserID, deviceID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
