package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"evscan/internal/audit"
	"evscan/internal/device"
	devicehandler "evscan/internal/device/handler"
	httpapi "evscan/internal/http"
	"evscan/internal/jwttoken"
	"evscan/internal/platform/config"
	"evscan/internal/platform/httpserver"
	"evscan/internal/platform/logger"
	platformredis "evscan/internal/platform/redis"
	"evscan/internal/scan"
	scanhandler "evscan/internal/scan/handler"
	scanmetrics "evscan/internal/scan/metrics"
	"evscan/internal/spec"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	registry := spec.Load()

	var (
		scanStore   scan.Store
		deviceStore device.Store
		auditStore  audit.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		scanStore = scan.NewPostgresStore(db)
		deviceStore = device.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		scanStore = scan.NewInMemoryStore()
		deviceStore = device.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	var cache scan.LatestCache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		cache = scan.NewRedisLatestCache(redisClient.Client, cfg.LatestCacheTTL)
	}

	inbox := make(chan audit.Event, 256)
	auditWorker := audit.NewWorker(auditStore, inbox, log)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	go func() {
		if err := auditWorker.Run(workerCtx); err != nil && err != context.Canceled {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	auditPublisher := audit.NewPublisher(inbox)
	deviceService := device.NewService(deviceStore, auditPublisher)
	scanService := scan.NewService(
		registry,
		deviceService,
		scanStore,
		cache,
		auditPublisher,
		scanmetrics.New(),
		cfg.BatchWorkers,
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey)
	scans := scanhandler.New(scanService, registry, log, jwtService, cfg.ScannerAPIKeys)
	devices := devicehandler.New(deviceService, log, jwtService)
	router := httpapi.NewRouter(log, scans, devices)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting evscan", "addr", cfg.Addr, "spec_version", registry.Version())

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	stopWorker()
}
