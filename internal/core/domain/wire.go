package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Wire schemas mirror the records backend payloads. They are decoded as-is
// and mapped to domain records by the normalizer.

// WaypointWire is a raw waypoint from the records backend.
type WaypointWire struct {
	ID               RecordID     `json:"id"`
	Kind             string       `json:"kind"`
	Name             string       `json:"name"`
	Location         RawGeometry  `json:"location"`
	Description      string       `json:"description,omitempty"`
	Telephone        string       `json:"telephone,omitempty"`
	IsAvailable      *bool        `json:"isAvailable,omitempty"`
	IsAvailableSnake *bool        `json:"is_available,omitempty"`
	Type             string       `json:"type"`
	CreatedAt        RawTimestamp `json:"created_at"`
}

// HazardZoneWire is a raw hazard zone. Location is always WKT.
type HazardZoneWire struct {
	ID          RecordID     `json:"id"`
	Kind        string       `json:"kind"`
	Name        string       `json:"name"`
	Location    RawGeometry  `json:"location"`
	Center      RawGeometry  `json:"center"`
	Severity    string       `json:"severity,omitempty"`
	Description string       `json:"description,omitempty"`
	CreatedAt   RawTimestamp `json:"created_at"`
}

// IncidentWire is a raw incident.
type IncidentWire struct {
	ID          RecordID     `json:"id"`
	Kind        string       `json:"kind"`
	Name        string       `json:"name"`
	Location    RawGeometry  `json:"location"`
	Description string       `json:"description,omitempty"`
	Severity    string       `json:"severity,omitempty"`
	CreatedAt   RawTimestamp `json:"created_at"`
}

// RecordID accepts a JSON string or integer.
type RecordID string

func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("record id %s: not a string or integer", b)
	}
	*id = RecordID(strconv.FormatInt(n, 10))
	return nil
}

// RawGeometry is an undecoded geometry field: a WKT string, a GeoJSON
// object, or null.
type RawGeometry struct {
	raw json.RawMessage
}

// WKTGeometry wraps a WKT string.
func WKTGeometry(wkt string) RawGeometry {
	b, _ := json.Marshal(wkt)
	return RawGeometry{raw: b}
}

// GeoJSONGeometry wraps an encoded GeoJSON geometry object.
func GeoJSONGeometry(b []byte) RawGeometry {
	if len(b) == 0 {
		return RawGeometry{}
	}
	return RawGeometry{raw: append(json.RawMessage(nil), b...)}
}

// PointGeometry encodes p as a GeoJSON point.
func PointGeometry(p GeoPoint) RawGeometry {
	b, _ := geojson.NewGeometry(orb.Point{p.Lon, p.Lat}).MarshalJSON()
	return RawGeometry{raw: b}
}

func (g *RawGeometry) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		g.raw = nil
		return nil
	}
	g.raw = append(g.raw[:0], b...)
	return nil
}

func (g RawGeometry) MarshalJSON() ([]byte, error) {
	if g.IsNull() {
		return []byte("null"), nil
	}
	return g.raw, nil
}

// IsNull reports whether the field was absent or null.
func (g RawGeometry) IsNull() bool { return len(g.raw) == 0 }

// WKT returns the string form when the field holds a JSON string.
func (g RawGeometry) WKT() (string, bool) {
	if g.IsNull() || g.raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(g.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Point decodes a GeoJSON point object, swapping to [lat, lon].
func (g RawGeometry) Point() (GeoPoint, error) {
	if g.IsNull() || g.raw[0] != '{' {
		return GeoPoint{}, fmt.Errorf("%w: not a GeoJSON object", ErrInvalidGeometry)
	}
	geom, err := geojson.UnmarshalGeometry(g.raw)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	pt, ok := geom.Coordinates.(orb.Point)
	if !ok {
		return GeoPoint{}, fmt.Errorf("%w: geometry type %s", ErrInvalidGeometry, geom.Type)
	}
	p := GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
	if !p.Valid() {
		return GeoPoint{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidGeometry)
	}
	return p, nil
}

// RawTimestamp is an undecoded creation timestamp: an ISO-8601 string, an
// epoch number in milliseconds, a native time, or absent.
type RawTimestamp struct {
	raw json.RawMessage
	t   time.Time
}

// TimestampAt wraps a native time.
func TimestampAt(t time.Time) RawTimestamp {
	return RawTimestamp{t: t}
}

func (ts *RawTimestamp) UnmarshalJSON(b []byte) error {
	ts.t = time.Time{}
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		ts.raw = nil
		return nil
	}
	ts.raw = append(ts.raw[:0], b...)
	return nil
}

func (ts RawTimestamp) MarshalJSON() ([]byte, error) {
	switch {
	case len(ts.raw) > 0:
		return ts.raw, nil
	case !ts.t.IsZero():
		return json.Marshal(ts.t)
	}
	return []byte("null"), nil
}

// IsAbsent reports whether the field was missing, null, or an empty string.
func (ts RawTimestamp) IsAbsent() bool {
	if !ts.t.IsZero() {
		return false
	}
	return len(ts.raw) == 0 || bytes.Equal(ts.raw, []byte(`""`))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// maxEpochMillis is the largest magnitude a JavaScript Date accepts.
const maxEpochMillis = 8.64e15

// Resolve returns the timestamp, or now when it is absent. A present value
// that cannot be parsed is an error.
func (ts RawTimestamp) Resolve(now time.Time) (time.Time, error) {
	if ts.IsAbsent() {
		return now, nil
	}
	if !ts.t.IsZero() {
		return ts.t, nil
	}

	switch ts.raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(ts.raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
		}
		s = strings.TrimSpace(s)
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
	case '{', '[', 't', 'f':
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimestamp, ts.raw)
	}

	ms, err := strconv.ParseFloat(string(ts.raw), 64)
	if err != nil || math.Abs(ms) > maxEpochMillis {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimestamp, ts.raw)
	}
	sec := math.Floor(ms / 1000)
	nsec := math.Round((ms - sec*1000) * 1e6)
	return time.Unix(int64(sec), int64(nsec)).UTC(), nil
}
