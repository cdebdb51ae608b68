package http

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/hazardmap/internal/core/usecases"
)

// Pinger is a dependency that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Records     *usecases.RecordService
	Submissions *usecases.SubmissionService
	Places      *usecases.PlaceService
	Normalizer  *usecases.Normalizer
	Validator   *SubmissionValidator
	NATS        *nats.Conn
	Backend     Pinger
	Cache       Pinger

	// AllowOrigins is a comma-separated CORS allow list; empty allows all.
	AllowOrigins string
	// DocsPath locates the OpenAPI document served under /docs.
	DocsPath string
}
