package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	devicehandler "evscan/internal/device/handler"
	"evscan/internal/platform/middleware"
	scanhandler "evscan/internal/scan/handler"
)

// NewRouter assembles the public surface. Handlers own their sub-routers and
// auth requirements; this layer only stacks the common middleware and mounts
// operational endpoints.
func NewRouter(logger *slog.Logger, scans *scanhandler.Handler, devices *devicehandler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)

	scans.Register(r)
	devices.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
