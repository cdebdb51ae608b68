package domain

import "github.com/samirrijal/hazardmap/internal/pkg/geospatial"

// GeoPoint represents a geographic coordinate (WGS 84) in [lat, lon] order.
type GeoPoint = geospatial.Point
