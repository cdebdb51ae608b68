package ports

import (
	"context"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// RecordSource fetches raw record collections from the records backend.
type RecordSource interface {
	FetchWaypoints(ctx context.Context) ([]domain.WaypointWire, error)
	FetchHazardZones(ctx context.Context) ([]domain.HazardZoneWire, error)
	FetchIncidents(ctx context.Context) ([]domain.IncidentWire, error)
}

// RecordWriter forwards mutations to the records backend.
type RecordWriter interface {
	// Create stores the submission and returns the backend-assigned id.
	Create(ctx context.Context, sub *domain.Submission) (string, error)
	Delete(ctx context.Context, kind domain.Kind, id string) error
}

// RecordBackend is a full records backend connection.
type RecordBackend interface {
	RecordSource
	RecordWriter
	Ping(ctx context.Context) error
}

// MaintenanceRepository supports the seeding and cleanup tooling.
type MaintenanceRepository interface {
	Count(ctx context.Context, kind domain.Kind) (int64, error)
	DeleteAll(ctx context.Context, kind domain.Kind) (int64, error)
}
