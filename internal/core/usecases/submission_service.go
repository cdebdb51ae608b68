package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/ports"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
	"github.com/samirrijal/hazardmap/internal/pkg/metrics"
	"github.com/samirrijal/hazardmap/internal/pkg/telemetry"
)

// Field limits of the records backend schema.
const (
	maxNameLen        = 50
	maxDescriptionLen = 250
	maxTelephoneLen   = 20
)

// SubmitResult reports how a submission was handled.
type SubmitResult struct {
	SubmissionID string `json:"submission_id"`
	RecordID     string `json:"record_id,omitempty"`
	WorkflowID   string `json:"workflow_id,omitempty"`
	Status       string `json:"status"` // "created" or "accepted"
}

// Invalidator drops cached collections after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, kind domain.Kind) error
}

// SubmissionService validates user submissions and forwards them to the
// records backend, either inline or through a durable workflow.
type SubmissionService struct {
	writer      ports.RecordWriter
	publisher   ports.EventPublisher
	starter     ports.SubmissionStarter
	invalidator Invalidator
	now         func() time.Time
}

// NewSubmissionService creates a new SubmissionService. publisher, starter
// and invalidator may be nil.
func NewSubmissionService(
	writer ports.RecordWriter,
	publisher ports.EventPublisher,
	starter ports.SubmissionStarter,
	invalidator Invalidator,
) *SubmissionService {
	return &SubmissionService{
		writer:      writer,
		publisher:   publisher,
		starter:     starter,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Validate normalizes sub in place and reports the first problem found.
// Hazard zones get their center set to the vertex centroid.
func (s *SubmissionService) Validate(sub *domain.Submission) error {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Description = strings.TrimSpace(sub.Description)

	if sub.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSubmission)
	}
	if utf8.RuneCountInString(sub.Name) > maxNameLen {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidSubmission, maxNameLen)
	}
	if utf8.RuneCountInString(sub.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidSubmission, maxDescriptionLen)
	}

	switch sub.Kind {
	case domain.KindWaypoint:
		if err := requirePoint(sub); err != nil {
			return err
		}
		typ, err := domain.ParseWaypointType(string(sub.Type))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
		}
		sub.Type = typ
		if len(sub.Telephone) > maxTelephoneLen {
			return fmt.Errorf("%w: telephone exceeds %d characters", ErrInvalidSubmission, maxTelephoneLen)
		}
		if sub.IsAvailable == nil {
			avail := true
			sub.IsAvailable = &avail
		}

	case domain.KindIncident:
		if err := requirePoint(sub); err != nil {
			return err
		}
		if err := defaultSeverity(sub); err != nil {
			return err
		}

	case domain.KindHazardZone:
		if sub.Location != nil {
			return fmt.Errorf("%w: hazard zones take vertices, not a location", ErrInvalidSubmission)
		}
		// a closing vertex does not count towards the minimum
		ring := geospatial.OpenRing(sub.Vertices)
		if len(ring) < minPolygonVertices {
			return fmt.Errorf("%w: polygon needs at least %d distinct vertices, got %d", ErrInvalidSubmission, minPolygonVertices, len(ring))
		}
		for i, v := range ring {
			if !v.Valid() {
				return fmt.Errorf("%w: vertex %d out of range", ErrInvalidSubmission, i)
			}
		}
		center, err := geospatial.Centroid(ring)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
		}
		sub.Vertices = ring
		sub.Center = &center
		if err := defaultSeverity(sub); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: cannot submit kind %q", ErrInvalidSubmission, sub.Kind)
	}
	return nil
}

// Submit validates sub and stores it. With a workflow starter configured the
// submission is handed off and reported as accepted.
func (s *SubmissionService) Submit(ctx context.Context, sub *domain.Submission) (res *SubmitResult, err error) {
	ctx, span := recordTracer.Start(ctx, "submit-record")
	span.SetAttributes(attribute.String(telemetry.AttrRecordKind, string(sub.Kind)))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.Validate(sub); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(sub.Kind), "invalid").Inc()
		return nil, err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	if s.starter != nil {
		wfID, err := s.starter.StartSubmission(ctx, sub)
		if err != nil {
			metrics.SubmissionsTotal.WithLabelValues(string(sub.Kind), "error").Inc()
			return nil, fmt.Errorf("start submission workflow: %w", err)
		}
		span.SetAttributes(attribute.String(telemetry.AttrWorkflowID, wfID))
		metrics.SubmissionsTotal.WithLabelValues(string(sub.Kind), "accepted").Inc()
		return &SubmitResult{SubmissionID: sub.ID, WorkflowID: wfID, Status: "accepted"}, nil
	}

	id, err := s.Store(ctx, sub)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(sub.Kind), "error").Inc()
		return nil, err
	}

	// Best-effort; the record is already stored
	if err := s.Announce(ctx, domain.EventCreated, sub.Kind, id); err != nil {
		logging.FromContext(ctx).Warn("publish record event failed", "kind", sub.Kind, "id", id, "error", err)
	}

	metrics.SubmissionsTotal.WithLabelValues(string(sub.Kind), "created").Inc()
	return &SubmitResult{SubmissionID: sub.ID, RecordID: id, Status: "created"}, nil
}

// Delete removes a record from the backend and announces the deletion.
func (s *SubmissionService) Delete(ctx context.Context, kind domain.Kind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidQuery)
	}
	if err := s.Retract(ctx, kind, id); err != nil {
		return err
	}
	if err := s.Announce(ctx, domain.EventDeleted, kind, id); err != nil {
		logging.FromContext(ctx).Warn("publish record event failed", "kind", kind, "id", id, "error", err)
	}
	return nil
}

// Store writes a validated submission and invalidates the cached collection.
func (s *SubmissionService) Store(ctx context.Context, sub *domain.Submission) (string, error) {
	id, err := s.writer.Create(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", sub.Kind, err)
	}
	s.invalidate(ctx, sub.Kind)
	return id, nil
}

// Retract deletes a record and invalidates the cached collection.
func (s *SubmissionService) Retract(ctx context.Context, kind domain.Kind, id string) error {
	if err := s.writer.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	s.invalidate(ctx, kind)
	return nil
}

// Announce publishes a record event. It is a no-op without a publisher.
func (s *SubmissionService) Announce(ctx context.Context, typ domain.EventType, kind domain.Kind, id string) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishRecordEvent(ctx, &domain.RecordEvent{
		Type:       typ,
		Kind:       kind,
		ID:         id,
		OccurredAt: s.now().UTC(),
	})
}

func (s *SubmissionService) invalidate(ctx context.Context, kind domain.Kind) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, kind); err != nil {
		logging.FromContext(ctx).Warn("cache invalidation failed", "kind", kind, "error", err)
	}
}

func requirePoint(sub *domain.Submission) error {
	if sub.Location == nil {
		return fmt.Errorf("%w: location is required", ErrInvalidSubmission)
	}
	if !sub.Location.Valid() {
		return fmt.Errorf("%w: location out of range", ErrInvalidSubmission)
	}
	if len(sub.Vertices) > 0 {
		return fmt.Errorf("%w: %s takes a location, not vertices", ErrInvalidSubmission, sub.Kind)
	}
	return nil
}

func defaultSeverity(sub *domain.Submission) error {
	sev, err := domain.ParseSeverity(string(sub.Severity))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	if sev == "" {
		sev = domain.SeverityMedium
	}
	sub.Severity = sev
	return nil
}
