package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

type parseRequest struct {
	WKT string `json:"wkt"`
}

// ParseResponse is the decoded form of a WKT geometry.
type ParseResponse struct {
	Shape    domain.Shape      `json:"shape"`
	Points   []domain.GeoPoint `json:"points"`
	Polyline string            `json:"polyline,omitempty"`
}

type distanceRequest struct {
	From *domain.GeoPoint `json:"from"`
	To   *domain.GeoPoint `json:"to"`
}

// DistanceResponse carries a great-circle distance and its display label.
type DistanceResponse struct {
	Kilometers float64 `json:"km"`
	Meters     float64 `json:"meters"`
	Label      string  `json:"label"`
}

type centroidRequest struct {
	Points []domain.GeoPoint `json:"points"`
}

type normalizeRequest struct {
	Waypoints   []domain.WaypointWire   `json:"waypoints"`
	HazardZones []domain.HazardZoneWire `json:"hazard_zones"`
	Incidents   []domain.IncidentWire   `json:"incidents"`
}

// RejectionView is the JSON form of a normalizer exclusion.
type RejectionView struct {
	Kind   domain.Kind `json:"kind"`
	Index  int         `json:"index"`
	ID     string      `json:"id,omitempty"`
	Reason string      `json:"reason"`
}

// ParseGeometryHandler decodes a WKT point or polygon into [lat, lon] points.
func ParseGeometryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req parseRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.WKT == "" {
			return errBadRequest(c, "wkt is required")
		}

		if p, ok := geospatial.ParsePoint(req.WKT); ok {
			return c.JSON(ParseResponse{Shape: domain.ShapePoint, Points: []domain.GeoPoint{p}})
		}
		if ring := geospatial.ParsePolygon(req.WKT); len(ring) > 0 {
			return c.JSON(ParseResponse{
				Shape:    domain.ShapePolygon,
				Points:   ring,
				Polyline: geospatial.EncodePolyline(ring),
			})
		}
		return errUnprocessable(c, "wkt is not a well-formed POINT or POLYGON")
	}
}

// DistanceHandler returns the great-circle distance between two points.
func DistanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req distanceRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		if req.From == nil || req.To == nil {
			return errBadRequest(c, "from and to are required")
		}
		if !req.From.Valid() || !req.To.Valid() {
			return errBadRequest(c, "coordinates out of range")
		}

		km := geospatial.DistanceKm(*req.From, *req.To)
		return c.JSON(DistanceResponse{
			Kilometers: km,
			Meters:     geospatial.Haversine(req.From.Lat, req.From.Lon, req.To.Lat, req.To.Lon),
			Label:      geospatial.FormatDistance(km),
		})
	}
}

// CentroidHandler returns the arithmetic mean of a vertex list.
func CentroidHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req centroidRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}

		center, err := geospatial.Centroid(req.Points)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fiber.Map{"centroid": center})
	}
}

// NormalizeHandler runs raw backend records through the normalizer and
// reports what was kept and what was excluded.
func NormalizeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req normalizeRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		ref, err := parseRef(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		records, rejected := deps.Normalizer.Batch(usecases.RawBatch{
			Waypoints:   req.Waypoints,
			HazardZones: req.HazardZones,
			Incidents:   req.Incidents,
		}, ref)

		views := make([]RejectionView, len(rejected))
		for i, r := range rejected {
			views[i] = RejectionView{Kind: r.Kind, Index: r.Index, ID: r.ID, Reason: r.Reason.Error()}
		}
		if records == nil {
			records = []domain.Record{}
		}
		return c.JSON(fiber.Map{"records": records, "rejected": views})
	}
}
