package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// Record is one of *Waypoint, *HazardZone, *Incident or *Place. The set is
// closed; consumers switch on the concrete type.
type Record interface {
	RecordKind() Kind
	Base() *RecordBase
	// Anchor is the point distances are measured from. It fails only for a
	// hazard zone with neither a center nor vertices.
	Anchor() (GeoPoint, error)
	isRecord()
}

// RecordBase holds the attributes shared by every record kind.
type RecordBase struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Distance      *float64  `json:"distance,omitempty"` // km from the reference position
	DistanceLabel string    `json:"distance_label,omitempty"`
}

// Base returns the shared attributes.
func (b *RecordBase) Base() *RecordBase { return b }

// SetDistance annotates the record with its distance from ref, or clears the
// annotation when ref is nil.
func (b *RecordBase) SetDistance(anchor GeoPoint, ref *GeoPoint) {
	if ref == nil {
		b.Distance = nil
		b.DistanceLabel = ""
		return
	}
	d := geospatial.DistanceKm(*ref, anchor)
	b.Distance = &d
	b.DistanceLabel = geospatial.FormatDistance(d)
}

// Waypoint is a fixed resource such as a hospital or fire station.
type Waypoint struct {
	RecordBase
	Location    GeoPoint     `json:"location"`
	Type        WaypointType `json:"type"`
	Telephone   string       `json:"telephone,omitempty"`
	IsAvailable *bool        `json:"is_available,omitempty"`
}

func (*Waypoint) RecordKind() Kind            { return KindWaypoint }
func (w *Waypoint) Anchor() (GeoPoint, error) { return w.Location, nil }
func (*Waypoint) isRecord()                   {}

// HazardZone is a polygonal or single-point danger area.
type HazardZone struct {
	RecordBase
	Shape       Shape      `json:"shape"`
	Coordinates []GeoPoint `json:"coordinates"`
	Center      *GeoPoint  `json:"center,omitempty"`
	Severity    Severity   `json:"severity,omitempty"`
}

func (*HazardZone) RecordKind() Kind { return KindHazardZone }
func (*HazardZone) isRecord()        {}

// Anchor prefers the declared center, then the vertex centroid.
func (z *HazardZone) Anchor() (GeoPoint, error) {
	if z.Center != nil {
		return *z.Center, nil
	}
	return geospatial.Centroid(z.Coordinates)
}

// Incident is a reported event at a point.
type Incident struct {
	RecordBase
	Location GeoPoint `json:"location"`
	Severity Severity `json:"severity,omitempty"`
}

func (*Incident) RecordKind() Kind            { return KindIncident }
func (i *Incident) Anchor() (GeoPoint, error) { return i.Location, nil }
func (*Incident) isRecord()                   {}

// Place is a geocoding search result.
type Place struct {
	RecordBase
	Coords        GeoPoint `json:"coords"`
	Type          string   `json:"type,omitempty"`
	Address       string   `json:"address"`
	MainLine      string   `json:"main_line"`
	SecondaryLine string   `json:"secondary_line,omitempty"`
}

func (*Place) RecordKind() Kind            { return KindPlace }
func (p *Place) Anchor() (GeoPoint, error) { return p.Coords, nil }
func (*Place) isRecord()                   {}

// Measure sets the distance of r from ref, or clears it when ref is nil.
// When r has no anchor the distance is left unset and the error returned.
func Measure(r Record, ref *GeoPoint) error {
	b := r.Base()
	if ref == nil {
		b.SetDistance(GeoPoint{}, nil)
		return nil
	}
	anchor, err := r.Anchor()
	if err != nil {
		b.Distance = nil
		b.DistanceLabel = ""
		return fmt.Errorf("record %s: %w", b.ID, err)
	}
	b.SetDistance(anchor, ref)
	return nil
}

// Annotate sets or clears the distance of every record against ref. Records
// without an anchor keep a nil distance; their errors are joined.
func Annotate(records []Record, ref *GeoPoint) error {
	var errs []error
	for _, r := range records {
		if err := Measure(r, ref); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clone returns a shallow copy of r whose RecordBase can be changed without
// affecting the original.
func Clone(r Record) Record {
	switch v := r.(type) {
	case *Waypoint:
		c := *v
		return &c
	case *HazardZone:
		c := *v
		return &c
	case *Incident:
		c := *v
		return &c
	case *Place:
		c := *v
		return &c
	}
	panic("domain: unknown record type")
}
