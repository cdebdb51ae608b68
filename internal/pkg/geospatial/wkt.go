package geospatial

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	sridPrefix     = regexp.MustCompile(`^\s*SRID=\d+;`)
	pointPattern   = regexp.MustCompile(`^POINT\s*\(\s*([^\s(),]+)\s+([^\s(),]+)\s*\)$`)
	polygonPattern = regexp.MustCompile(`^POLYGON\s*\(\s*\((.*)\)\s*\)$`)
)

// ParsePoint parses "[SRID=n;]POINT (lon lat)" into a Point in [lat, lon] order.
// Geometry keywords are upper case only, matching the hazard zone dispatch.
// ok is false when the string is not a well-formed point.
func ParsePoint(wkt string) (p Point, ok bool) {
	m := pointPattern.FindStringSubmatch(stripSRID(wkt))
	if m == nil {
		return Point{}, false
	}
	return parsePair(m[1], m[2])
}

// ParsePolygon parses "[SRID=n;]POLYGON ((lon lat, ...))" into its outer ring
// in listed order. A repeated closing vertex is kept. Any malformed vertex
// fails the whole polygon and an empty slice is returned.
func ParsePolygon(wkt string) []Point {
	m := polygonPattern.FindStringSubmatch(stripSRID(wkt))
	if m == nil {
		return []Point{}
	}

	body := strings.TrimSpace(m[1])
	if body == "" {
		return []Point{}
	}

	vertices := strings.Split(body, ",")
	points := make([]Point, 0, len(vertices))
	for _, v := range vertices {
		fields := strings.Fields(v)
		if len(fields) != 2 {
			return []Point{}
		}
		p, ok := parsePair(fields[0], fields[1])
		if !ok {
			return []Point{}
		}
		points = append(points, p)
	}
	return points
}

// FormatPoint renders p as "POINT (lon lat)".
func FormatPoint(p Point) string {
	return "POINT (" + formatPair(p) + ")"
}

// FormatPolygon renders the ring as "POLYGON ((lon lat, ...))". The ring is
// written as given; callers close it if the consumer requires closure.
func FormatPolygon(ring []Point) string {
	parts := make([]string, len(ring))
	for i, p := range ring {
		parts[i] = formatPair(p)
	}
	return "POLYGON ((" + strings.Join(parts, ", ") + "))"
}

// WithSRID prefixes an EWKT spatial reference.
func WithSRID(srid int, wkt string) string {
	return "SRID=" + strconv.Itoa(srid) + ";" + wkt
}

// CloseRing returns ring with its first vertex appended when it is not closed already.
func CloseRing(ring []Point) []Point {
	if len(ring) == 0 || ring[0] == ring[len(ring)-1] {
		return ring
	}
	closed := make([]Point, len(ring), len(ring)+1)
	copy(closed, ring)
	return append(closed, ring[0])
}

// OpenRing returns ring without a repeated closing vertex. The result shares
// the backing array of ring.
func OpenRing(ring []Point) []Point {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		return ring[:len(ring)-1]
	}
	return ring
}

func stripSRID(wkt string) string {
	return strings.TrimSpace(sridPrefix.ReplaceAllString(wkt, ""))
}

// parsePair reads WKT's (lon, lat) order and swaps it.
func parsePair(lonTok, latTok string) (Point, bool) {
	lon, err := strconv.ParseFloat(lonTok, 64)
	if err != nil || math.IsInf(lon, 0) {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(latTok, 64)
	if err != nil || math.IsInf(lat, 0) {
		return Point{}, false
	}
	p := Point{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Point{}, false
	}
	return p, true
}

func formatPair(p Point) string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + " " + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}
