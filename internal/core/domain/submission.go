package domain

import (
	"time"

	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// SRID used for every geometry written to the records backend.
const SRID = 4326

// Submission is user input for creating a record.
type Submission struct {
	ID          string       `json:"id"` // idempotency key, assigned by the gateway
	Kind        Kind         `json:"kind"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Location    *GeoPoint    `json:"location,omitempty"`
	Vertices    []GeoPoint   `json:"vertices,omitempty"`
	Center      *GeoPoint    `json:"center,omitempty"`
	Severity    Severity     `json:"severity,omitempty"`
	Type        WaypointType `json:"type,omitempty"`
	Telephone   string       `json:"telephone,omitempty"`
	IsAvailable *bool        `json:"is_available,omitempty"`
}

// GeometryWKT renders the submitted geometry as EWKT. Polygons are closed.
func (s *Submission) GeometryWKT() string {
	if len(s.Vertices) > 0 {
		return geospatial.WithSRID(SRID, geospatial.FormatPolygon(geospatial.CloseRing(s.Vertices)))
	}
	if s.Location != nil {
		return geospatial.WithSRID(SRID, geospatial.FormatPoint(*s.Location))
	}
	return ""
}

// EventType names a record lifecycle event.
type EventType string

const (
	EventCreated EventType = "created"
	EventDeleted EventType = "deleted"
)

// RecordEvent is published whenever a record is created or deleted through
// the gateway.
type RecordEvent struct {
	Type       EventType `json:"type"`
	Kind       Kind      `json:"kind"`
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
}
