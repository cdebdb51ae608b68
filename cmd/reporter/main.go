package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/hazardmap/internal/adapters/backend"
	natsadapter "github.com/samirrijal/hazardmap/internal/adapters/nats"
	"github.com/samirrijal/hazardmap/internal/adapters/postgres"
	"github.com/samirrijal/hazardmap/internal/core/ports"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
	"github.com/samirrijal/hazardmap/internal/pkg/config"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
	"github.com/samirrijal/hazardmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("hazardmap-reporter")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Records backend
	var writer ports.RecordWriter
	switch cfg.Backend.Mode {
	case config.BackendPostgres:
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		writer = postgres.NewRecordRepo(db)
	default:
		writer = backend.New(cfg.Backend.URL, time.Duration(cfg.Backend.Timeout)*time.Second)
	}

	// The saga compensates on failed announcements, so events are required here.
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer publisher.Close()

	// Cache invalidation happens in the API through the record event stream.
	submissions := usecases.NewSubmissionService(writer, publisher, nil, nil)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.SubmissionWorkflow)
	w.RegisterActivity(&workflows.SubmissionActivities{
		Submissions: submissions,
	})

	slog.Info("reporter worker started", "task_queue", cfg.Temporal.TaskQueue, "backend", cfg.Backend.Mode)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
