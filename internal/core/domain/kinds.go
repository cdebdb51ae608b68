package domain

import "fmt"

// Kind discriminates the record variants.
type Kind string

const (
	KindWaypoint   Kind = "waypoint"
	KindHazardZone Kind = "hazardZone"
	KindIncident   Kind = "incident"
	KindPlace      Kind = "photonPlace"
)

// StoredKinds are the kinds persisted by the records backend.
var StoredKinds = []Kind{KindWaypoint, KindHazardZone, KindIncident}

// ParseKind accepts the wire discriminator values.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindWaypoint, KindHazardZone, KindIncident, KindPlace:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Severity of a hazard zone or incident. The zero value means absent.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists the accepted severities in ascending order.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ParseSeverity returns the zero Severity for an empty string.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case "", SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// WaypointType categorises a waypoint.
type WaypointType string

const (
	WaypointFireStation            WaypointType = "firestation"
	WaypointPoliceStation          WaypointType = "policestation"
	WaypointHospital               WaypointType = "hospital"
	WaypointCriticalInfrastructure WaypointType = "critical infrastructure"
	WaypointMedicalFacility        WaypointType = "medical facility"
	WaypointSupplyCenter           WaypointType = "supply center"
	WaypointOther                  WaypointType = "other"
)

// WaypointTypes lists every accepted waypoint type.
var WaypointTypes = []WaypointType{
	WaypointFireStation, WaypointPoliceStation, WaypointHospital,
	WaypointCriticalInfrastructure, WaypointMedicalFacility, WaypointSupplyCenter, WaypointOther,
}

// ParseWaypointType maps an empty string to WaypointOther.
func ParseWaypointType(s string) (WaypointType, error) {
	if s == "" {
		return WaypointOther, nil
	}
	for _, t := range WaypointTypes {
		if WaypointType(s) == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Shape of a hazard zone geometry.
type Shape string

const (
	ShapePoint   Shape = "Point"
	ShapePolygon Shape = "Polygon"
)
