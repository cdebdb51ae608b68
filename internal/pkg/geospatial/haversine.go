package geospatial

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS 84 coordinate in internal [lat, lon] order.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies inside the latitude/longitude ranges.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

// DistanceKm returns the great-circle distance in kilometers between a and b.
func DistanceKm(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// rounding can push h a hair outside [0, 1] for antipodal points
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceKm(Point{Lat: lat1, Lon: lon1}, Point{Lat: lat2, Lon: lon2}) * 1000
}

// Offset moves p by distanceKm along bearingDeg using an equirectangular
// approximation. Good enough for seeding points a few kilometers apart.
func Offset(p Point, distanceKm, bearingDeg float64) Point {
	theta := toRad(bearingDeg)
	dLat := distanceKm / 111.32 * math.Cos(theta)
	dLon := distanceKm / (111.32 * math.Cos(toRad(p.Lat))) * math.Sin(theta)
	return Point{Lat: p.Lat + dLat, Lon: p.Lon + dLon}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
