package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/hazardmap/internal/adapters/backend"
	"github.com/samirrijal/hazardmap/internal/adapters/geoip"
	"github.com/samirrijal/hazardmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/hazardmap/internal/adapters/nats"
	"github.com/samirrijal/hazardmap/internal/adapters/photon"
	"github.com/samirrijal/hazardmap/internal/adapters/postgres"
	"github.com/samirrijal/hazardmap/internal/adapters/temporal"
	"github.com/samirrijal/hazardmap/internal/adapters/valkey"
	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/ports"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
	"github.com/samirrijal/hazardmap/internal/pkg/config"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("hazardmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Records backend
	records, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}
	defer closeBackend()

	// Cache. A nil *valkey.Cache must not end up inside the interface.
	var cache ports.CacheService
	var cachePinger http.Pinger
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, caching disabled", "error", err)
	} else {
		defer vc.Close()
		cache, cachePinger = vc, vc
	}

	// NATS
	var publisher ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, record events disabled", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
	}

	// Raw NATS connection for the WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Submission workflows
	var starter ports.SubmissionStarter
	if cfg.Temporal.Enabled {
		st, err := temporal.Dial(cfg.Temporal.HostPort, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue)
		if err != nil {
			slog.Warn("temporal unavailable, submitting inline", "error", err)
		} else {
			defer st.Close()
			starter = st
		}
	}

	// Geocoding
	var locator ports.IPLocator
	if cfg.GeoIP.DBPath != "" {
		loc, err := geoip.Open(cfg.GeoIP.DBPath)
		if err != nil {
			slog.Warn("geoip database unavailable", "path", cfg.GeoIP.DBPath, "error", err)
		} else {
			defer loc.Close()
			locator = loc
		}
	}
	geocoder := photon.New(cfg.Photon.URL, time.Duration(cfg.Backend.Timeout)*time.Second)

	// Use cases
	normalizer := usecases.NewNormalizer(time.Now, slog.Default())
	recordSvc := usecases.NewRecordService(records, cache, normalizer, cfg.Cache.TTLSeconds)
	submissionSvc := usecases.NewSubmissionService(records, publisher, starter, recordSvc)
	placeSvc := usecases.NewPlaceService(geocoder, locator,
		domain.GeoPoint{Lat: cfg.Photon.DefaultLat, Lon: cfg.Photon.DefaultLon}, cfg.Photon.Limit)

	// Drop cached collections when a record changes elsewhere (reporter worker,
	// other API replicas).
	if sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "hazardmap-api-cache"); err != nil {
		slog.Warn("record event subscription unavailable", "error", err)
	} else {
		defer sub.Close()
		if err := recordSvc.FollowEvents(ctx, sub); err != nil {
			slog.Warn("subscribe record events", "error", err)
		}
	}

	deps := &http.Dependencies{
		Records:      recordSvc,
		Submissions:  submissionSvc,
		Places:       placeSvc,
		Normalizer:   normalizer,
		NATS:         natsConn,
		Backend:      records,
		Cache:        cachePinger,
		AllowOrigins: cfg.Server.AllowOrigins,
		DocsPath:     cfg.Server.OpenAPIPath,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Hazard Map API",
	})

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "backend", cfg.Backend.Mode)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// openBackend connects to the records backend selected by backend.mode.
func openBackend(ctx context.Context, cfg *config.Config) (ports.RecordBackend, func(), error) {
	switch cfg.Backend.Mode {
	case config.BackendPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		go db.ReportPoolStats(ctx, 15*time.Second)
		return postgres.NewRecordRepo(db), db.Close, nil
	default:
		return backend.New(cfg.Backend.URL, time.Duration(cfg.Backend.Timeout)*time.Second), func() {}, nil
	}
}
