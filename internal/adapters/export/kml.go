package export

import (
	"io"
	"strings"

	"github.com/twpayne/go-kml"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// WriteKML writes records as a KML document with one folder per kind.
func WriteKML(w io.Writer, name string, records []domain.Record) error {
	folders := map[domain.Kind][]kml.Element{}
	for _, r := range records {
		if pm := Placemark(r); pm != nil {
			k := r.RecordKind()
			folders[k] = append(folders[k], pm)
		}
	}

	doc := []kml.Element{kml.Name(name)}
	for _, k := range []domain.Kind{domain.KindWaypoint, domain.KindHazardZone, domain.KindIncident, domain.KindPlace} {
		if len(folders[k]) == 0 {
			continue
		}
		children := append([]kml.Element{kml.Name(folderName(k))}, folders[k]...)
		doc = append(doc, kml.Folder(children...))
	}

	return kml.KML(kml.Document(doc...)).WriteIndent(w, "", "  ")
}

// Placemark converts one record. It returns nil for a hazard zone without
// vertices.
func Placemark(r domain.Record) kml.Element {
	var geom kml.Element

	switch v := r.(type) {
	case *domain.Waypoint:
		geom = point(v.Location)
	case *domain.HazardZone:
		if len(v.Coordinates) == 0 {
			return nil
		}
		if v.Shape == domain.ShapePoint {
			geom = point(v.Coordinates[0])
		} else {
			geom = polygon(v.Coordinates)
		}
	case *domain.Incident:
		geom = point(v.Location)
	case *domain.Place:
		geom = point(v.Coords)
	default:
		return nil
	}

	b := r.Base()
	children := []kml.Element{kml.Name(b.Name)}
	if d := describe(r); d != "" {
		children = append(children, kml.Description(d))
	}
	if !b.CreatedAt.IsZero() {
		children = append(children, kml.TimeStamp(kml.When(b.CreatedAt.UTC())))
	}
	children = append(children, geom)
	return kml.Placemark(children...)
}

func describe(r domain.Record) string {
	var lines []string
	switch v := r.(type) {
	case *domain.Waypoint:
		lines = append(lines, "Type: "+string(v.Type))
		if v.Telephone != "" {
			lines = append(lines, "Telephone: "+v.Telephone)
		}
	case *domain.HazardZone:
		if v.Severity != "" {
			lines = append(lines, "Severity: "+string(v.Severity))
		}
	case *domain.Incident:
		if v.Severity != "" {
			lines = append(lines, "Severity: "+string(v.Severity))
		}
	case *domain.Place:
		if v.Address != "" {
			lines = append(lines, v.Address)
		}
	}
	b := r.Base()
	if b.Description != "" {
		lines = append(lines, b.Description)
	}
	if b.Distance != nil {
		lines = append(lines, "Distance: "+b.DistanceLabel)
	}
	return strings.Join(lines, "\n")
}

func point(p domain.GeoPoint) kml.Element {
	return kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lon, Lat: p.Lat}))
}

func polygon(vertices []domain.GeoPoint) kml.Element {
	closed := geospatial.CloseRing(vertices)
	coords := make([]kml.Coordinate, len(closed))
	for i, p := range closed {
		coords[i] = kml.Coordinate{Lon: p.Lon, Lat: p.Lat}
	}
	return kml.Polygon(kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(coords...))))
}

func folderName(k domain.Kind) string {
	switch k {
	case domain.KindWaypoint:
		return "Waypoints"
	case domain.KindHazardZone:
		return "Hazard zones"
	case domain.KindIncident:
		return "Incidents"
	case domain.KindPlace:
		return "Places"
	}
	return string(k)
}
