package geospatial

import "errors"

// ErrEmptyPolygon is returned when a centroid is requested for zero vertices.
var ErrEmptyPolygon = errors.New("geospatial: centroid of empty vertex list")

// Centroid returns the unweighted planar mean of the vertices. It is only a
// reasonable approximation for small polygons (city-block scale). A repeated
// closing vertex counts twice, same as any other listed vertex.
func Centroid(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, ErrEmptyPolygon
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lon: sumLon / n}, nil
}
