// Package export renders record collections as GeoJSON and KML documents.
package export

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// FeatureCollection converts records to GeoJSON. Coordinates are written in
// [lon, lat] order and polygon rings are closed.
func FeatureCollection(records []domain.Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		if f := Feature(r); f != nil {
			fc.Append(f)
		}
	}
	return fc
}

// Feature converts one record. It returns nil for a hazard zone without
// vertices.
func Feature(r domain.Record) *geojson.Feature {
	var geom orb.Geometry
	props := geojson.Properties{}

	switch v := r.(type) {
	case *domain.Waypoint:
		geom = toPoint(v.Location)
		props["type"] = string(v.Type)
		if v.Telephone != "" {
			props["telephone"] = v.Telephone
		}
		if v.IsAvailable != nil {
			props["is_available"] = *v.IsAvailable
		}
	case *domain.HazardZone:
		if len(v.Coordinates) == 0 {
			return nil
		}
		if v.Shape == domain.ShapePoint {
			geom = toPoint(v.Coordinates[0])
		} else {
			geom = toPolygon(v.Coordinates)
		}
		if v.Severity != "" {
			props["severity"] = string(v.Severity)
		}
		if v.Center != nil {
			props["center"] = []float64{v.Center.Lon, v.Center.Lat}
		}
	case *domain.Incident:
		geom = toPoint(v.Location)
		if v.Severity != "" {
			props["severity"] = string(v.Severity)
		}
	case *domain.Place:
		geom = toPoint(v.Coords)
		props["address"] = v.Address
	default:
		return nil
	}

	b := r.Base()
	f := geojson.NewFeature(geom)
	f.ID = b.ID
	props["kind"] = string(b.Kind)
	props["name"] = b.Name
	if b.Description != "" {
		props["description"] = b.Description
	}
	if !b.CreatedAt.IsZero() {
		props["created_at"] = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	if b.Distance != nil {
		props["distance_km"] = *b.Distance
		props["distance_label"] = b.DistanceLabel
	}
	f.Properties = props
	return f
}

func toPoint(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func toPolygon(vertices []domain.GeoPoint) orb.Polygon {
	closed := geospatial.CloseRing(vertices)
	ring := make(orb.Ring, len(closed))
	for i, p := range closed {
		ring[i] = toPoint(p)
	}
	return orb.Polygon{ring}
}
