package ports

import (
	"context"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// EventPublisher publishes record events to a message broker.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, event *domain.RecordEvent) error
}

// EventSubscriber subscribes to record events from a message broker.
type EventSubscriber interface {
	SubscribeRecordEvents(ctx context.Context, handler func(ctx context.Context, event *domain.RecordEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Geocoder resolves free-text queries to candidate places.
type Geocoder interface {
	Search(ctx context.Context, query string, bias domain.GeoPoint, limit int) ([]domain.GeocodeResult, error)
}

// IPLocator approximates a client position from its IP address.
type IPLocator interface {
	Locate(ip string) (*domain.GeoPoint, error)
}

// SubmissionStarter hands a submission to a durable workflow engine.
type SubmissionStarter interface {
	StartSubmission(ctx context.Context, sub *domain.Submission) (workflowID string, err error)
}
