package http

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
)

// collectionKinds maps the URL collection segment to the stored kind.
var collectionKinds = map[string]domain.Kind{
	"waypoints":    domain.KindWaypoint,
	"hazard-zones": domain.KindHazardZone,
	"incidents":    domain.KindIncident,
}

// parseRef reads the optional lat/lon reference position. Both or neither
// must be given.
func parseRef(c *fiber.Ctx) (*domain.GeoPoint, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, fmt.Errorf("lat and lon must be given together")
	}
	ref := domain.GeoPoint{Lat: c.QueryFloat("lat", 999), Lon: c.QueryFloat("lon", 999)}
	if !ref.Valid() {
		return nil, fmt.Errorf("lat must be within [-90, 90] and lon within [-180, 180]")
	}
	return &ref, nil
}

// parseKinds reads a comma-separated list of stored kinds.
func parseKinds(raw string) ([]domain.Kind, error) {
	if raw == "" {
		return nil, nil
	}
	var kinds []domain.Kind
	for _, part := range strings.Split(raw, ",") {
		k, err := domain.ParseKind(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if k == domain.KindPlace {
			return nil, fmt.Errorf("%w: %q is not stored", domain.ErrInvalidKind, k)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// ListRecordsHandler returns one stored kind in backend order, annotated
// with distances when lat/lon are given.
func ListRecordsHandler(deps *Dependencies, kind domain.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref, err := parseRef(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		records, err := deps.Records.List(c.UserContext(), kind, ref)
		if err != nil {
			return errFromService(c, err)
		}

		offset, limit := parsePage(c)
		page, pg := paginate(records, offset, limit)
		SetLinkHeaders(c, pg)

		if kind == domain.KindHazardZone && c.Query("encoding") == "polyline" {
			return c.JSON(PaginatedResponse{Data: encodeZones(page), Pagination: pg})
		}
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// ListAllRecordsHandler returns waypoints, then hazard zones, then incidents.
func ListAllRecordsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref, err := parseRef(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		records, err := deps.Records.All(c.UserContext(), ref)
		if err != nil {
			return errFromService(c, err)
		}

		offset, limit := parsePage(c)
		page, pg := paginate(records, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// NearbyRecordsHandler returns records within radius_km of lat/lon, nearest first.
func NearbyRecordsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ref, err := parseRef(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		if ref == nil {
			return errBadRequest(c, "lat and lon are required")
		}
		radius := c.QueryFloat("radius_km", 5)
		if radius <= 0 || radius > 500 {
			return errBadRequest(c, "radius_km must be between 0 and 500")
		}
		kinds, err := parseKinds(c.Query("kinds"))
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		records, err := deps.Records.Nearby(c.UserContext(), *ref, radius, kinds)
		if err != nil {
			return errFromService(c, err)
		}

		limit := c.QueryInt("limit", 50)
		if limit > 0 && len(records) > limit {
			records = records[:limit]
		}
		return c.JSON(fiber.Map{"data": records})
	}
}

// GetRecordHandler returns a single record by ID.
func GetRecordHandler(deps *Dependencies, kind domain.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "record id is required")
		}
		ref, err := parseRef(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		record, err := deps.Records.Get(c.UserContext(), kind, id, ref)
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(record)
	}
}

// encodedZone replaces the vertex list of a hazard zone with its polyline.
type encodedZone struct {
	*domain.HazardZone
	Coordinates *struct{} `json:"coordinates,omitempty"`
	Polyline    string    `json:"polyline"`
}

func encodeZones(records []domain.Record) []interface{} {
	out := make([]interface{}, 0, len(records))
	for _, r := range records {
		z, ok := r.(*domain.HazardZone)
		if !ok {
			out = append(out, r)
			continue
		}
		out = append(out, encodedZone{HazardZone: z, Polyline: geospatial.EncodePolyline(z.Coordinates)})
	}
	return out
}
