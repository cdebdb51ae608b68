package geospatial

import (
	"fmt"

	"github.com/twpayne/go-polyline"
)

// EncodePolyline encodes the ring with the Google polyline algorithm
// (precision 5). Coordinates are emitted in [lat, lon] order.
func EncodePolyline(ring []Point) string {
	coords := make([][]float64, len(ring))
	for i, p := range ring {
		coords[i] = []float64{p.Lat, p.Lon}
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline is the inverse of EncodePolyline.
func DecodePolyline(s string) ([]Point, error) {
	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}
	points := make([]Point, len(coords))
	for i, c := range coords {
		points[i] = Point{Lat: c[0], Lon: c[1]}
	}
	return points, nil
}
