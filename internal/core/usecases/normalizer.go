package usecases

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// UnnamedZone replaces an empty hazard zone name.
const UnnamedZone = "Unnamed Zone"

// minPolygonVertices is the smallest ring that can be displayed.
const minPolygonVertices = 3

// Rejection describes a raw record the normalizer excluded.
type Rejection struct {
	Kind   domain.Kind
	Index  int
	ID     string
	Reason error
}

// RawBatch groups one fetch of every stored kind.
type RawBatch struct {
	Waypoints   []domain.WaypointWire
	HazardZones []domain.HazardZoneWire
	Incidents   []domain.IncidentWire
}

// Normalizer maps wire records to domain records. It holds no mutable state
// and is safe for concurrent use.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. now supplies the creation time of
// records without a timestamp.
func NewNormalizer(now func() time.Time, logger *slog.Logger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{now: now, logger: logger}
}

// Waypoints normalizes a waypoint collection, preserving input order.
func (n *Normalizer) Waypoints(raw []domain.WaypointWire, ref *domain.GeoPoint) ([]domain.Record, []Rejection) {
	now := n.now()
	out := make([]domain.Record, 0, len(raw))
	var rejected []Rejection
	for i := range raw {
		wp, err := MapWaypoint(&raw[i], now)
		if err != nil {
			rejected = append(rejected, n.reject(domain.KindWaypoint, i, string(raw[i].ID), err))
			continue
		}
		n.measure(wp, ref)
		out = append(out, wp)
	}
	return out, rejected
}

// HazardZones normalizes a hazard zone collection, preserving input order.
func (n *Normalizer) HazardZones(raw []domain.HazardZoneWire, ref *domain.GeoPoint) ([]domain.Record, []Rejection) {
	now := n.now()
	out := make([]domain.Record, 0, len(raw))
	var rejected []Rejection
	for i := range raw {
		z, err := MapHazardZone(&raw[i], now)
		if err != nil {
			rejected = append(rejected, n.reject(domain.KindHazardZone, i, string(raw[i].ID), err))
			continue
		}
		n.measure(z, ref)
		out = append(out, z)
	}
	return out, rejected
}

// Incidents normalizes an incident collection, preserving input order.
func (n *Normalizer) Incidents(raw []domain.IncidentWire, ref *domain.GeoPoint) ([]domain.Record, []Rejection) {
	now := n.now()
	out := make([]domain.Record, 0, len(raw))
	var rejected []Rejection
	for i := range raw {
		inc, err := MapIncident(&raw[i], now)
		if err != nil {
			rejected = append(rejected, n.reject(domain.KindIncident, i, string(raw[i].ID), err))
			continue
		}
		n.measure(inc, ref)
		out = append(out, inc)
	}
	return out, rejected
}

// Batch normalizes every collection of b: waypoints, then hazard zones,
// then incidents.
func (n *Normalizer) Batch(b RawBatch, ref *domain.GeoPoint) ([]domain.Record, []Rejection) {
	wps, r1 := n.Waypoints(b.Waypoints, ref)
	zones, r2 := n.HazardZones(b.HazardZones, ref)
	incs, r3 := n.Incidents(b.Incidents, ref)

	out := make([]domain.Record, 0, len(wps)+len(zones)+len(incs))
	out = append(out, wps...)
	out = append(out, zones...)
	out = append(out, incs...)

	var rejected []Rejection
	rejected = append(rejected, r1...)
	rejected = append(rejected, r2...)
	rejected = append(rejected, r3...)
	return out, rejected
}

// measure annotates r with its distance from ref. A record without an anchor
// is still emitted, just without a distance.
func (n *Normalizer) measure(r domain.Record, ref *domain.GeoPoint) {
	if err := domain.Measure(r, ref); err != nil {
		n.logger.Warn("record distance unavailable", "kind", r.RecordKind(), "error", err)
	}
}

func (n *Normalizer) reject(kind domain.Kind, index int, id string, err error) Rejection {
	n.logger.Warn("record excluded",
		"kind", kind,
		"index", index,
		"id", id,
		"reason", err.Error(),
	)
	return Rejection{Kind: kind, Index: index, ID: id, Reason: err}
}

// MapWaypoint is the total mapping from the waypoint wire schema.
func MapWaypoint(w *domain.WaypointWire, now time.Time) (*domain.Waypoint, error) {
	base, err := mapBase(domain.KindWaypoint, w.ID, w.Kind, w.Name, w.Description, w.CreatedAt, now)
	if err != nil {
		return nil, err
	}
	loc, err := pointFrom(w.Location)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	typ, err := domain.ParseWaypointType(w.Type)
	if err != nil {
		return nil, err
	}

	avail := w.IsAvailable
	if avail == nil {
		avail = w.IsAvailableSnake
	}

	return &domain.Waypoint{
		RecordBase:  base,
		Location:    loc,
		Type:        typ,
		Telephone:   w.Telephone,
		IsAvailable: avail,
	}, nil
}

// MapHazardZone is the total mapping from the hazard zone wire schema.
func MapHazardZone(w *domain.HazardZoneWire, now time.Time) (*domain.HazardZone, error) {
	name := w.Name
	if name == "" {
		name = UnnamedZone
	}
	base, err := mapBase(domain.KindHazardZone, w.ID, w.Kind, name, w.Description, w.CreatedAt, now)
	if err != nil {
		return nil, err
	}
	sev, err := domain.ParseSeverity(w.Severity)
	if err != nil {
		return nil, err
	}

	z := &domain.HazardZone{RecordBase: base, Severity: sev}

	if wkt, ok := w.Location.WKT(); ok {
		// dispatch is a literal, case-sensitive token match
		if strings.Contains(wkt, "POINT") {
			p, ok := geospatial.ParsePoint(wkt)
			if !ok {
				return nil, fmt.Errorf("location: %w: malformed point", domain.ErrInvalidGeometry)
			}
			z.Shape = domain.ShapePoint
			z.Coordinates = []domain.GeoPoint{p}
		} else {
			ring := geospatial.ParsePolygon(wkt)
			// a closing vertex is kept but does not count towards the minimum
			if n := len(geospatial.OpenRing(ring)); n < minPolygonVertices {
				return nil, fmt.Errorf("location: %w: polygon has %d distinct vertices", domain.ErrInvalidGeometry, n)
			}
			z.Shape = domain.ShapePolygon
			z.Coordinates = ring
		}
	} else {
		p, err := pointFrom(w.Location)
		if err != nil {
			return nil, fmt.Errorf("location: %w", err)
		}
		z.Shape = domain.ShapePoint
		z.Coordinates = []domain.GeoPoint{p}
	}

	if !w.Center.IsNull() {
		c, err := pointFrom(w.Center)
		if err != nil {
			return nil, fmt.Errorf("center: %w", err)
		}
		z.Center = &c
	}

	return z, nil
}

// MapIncident is the total mapping from the incident wire schema.
func MapIncident(w *domain.IncidentWire, now time.Time) (*domain.Incident, error) {
	base, err := mapBase(domain.KindIncident, w.ID, w.Kind, w.Name, w.Description, w.CreatedAt, now)
	if err != nil {
		return nil, err
	}
	loc, err := pointFrom(w.Location)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	sev, err := domain.ParseSeverity(w.Severity)
	if err != nil {
		return nil, err
	}
	return &domain.Incident{RecordBase: base, Location: loc, Severity: sev}, nil
}

func mapBase(want domain.Kind, id domain.RecordID, kind, name, description string, ts domain.RawTimestamp, now time.Time) (domain.RecordBase, error) {
	if id == "" {
		return domain.RecordBase{}, domain.ErrMissingID
	}
	if kind != "" && domain.Kind(kind) != want {
		return domain.RecordBase{}, fmt.Errorf("%w: got %q, want %q", domain.ErrKindMismatch, kind, want)
	}
	created, err := ts.Resolve(now)
	if err != nil {
		return domain.RecordBase{}, err
	}
	return domain.RecordBase{
		ID:          string(id),
		Kind:        want,
		Name:        name,
		Description: description,
		CreatedAt:   created,
	}, nil
}

// pointFrom reads a single point from a WKT string or a GeoJSON object.
func pointFrom(g domain.RawGeometry) (domain.GeoPoint, error) {
	if g.IsNull() {
		return domain.GeoPoint{}, fmt.Errorf("%w: missing", domain.ErrInvalidGeometry)
	}
	if wkt, ok := g.WKT(); ok {
		if !strings.Contains(wkt, "POINT") {
			return domain.GeoPoint{}, fmt.Errorf("%w: not a point", domain.ErrInvalidGeometry)
		}
		p, ok := geospatial.ParsePoint(wkt)
		if !ok {
			return domain.GeoPoint{}, fmt.Errorf("%w: malformed point", domain.ErrInvalidGeometry)
		}
		return p, nil
	}
	return g.Point()
}

// RejectReason classifies a rejection for metrics labels.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidGeometry):
		return "geometry"
	case errors.Is(err, domain.ErrInvalidTimestamp):
		return "timestamp"
	case errors.Is(err, domain.ErrInvalidSeverity):
		return "severity"
	case errors.Is(err, domain.ErrInvalidType):
		return "type"
	case errors.Is(err, domain.ErrKindMismatch):
		return "kind"
	case errors.Is(err, domain.ErrMissingID):
		return "id"
	}
	return "other"
}
