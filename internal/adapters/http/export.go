package http

import (
	"bytes"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/hazardmap/internal/adapters/export"
)

// ExportKMLHandler serves every current record as a KML document.
func ExportKMLHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := deps.Records.All(c.UserContext(), nil)
		if err != nil {
			return errFromService(c, err)
		}

		var buf bytes.Buffer
		if err := export.WriteKML(&buf, "Hazard map", records); err != nil {
			return errInternal(c, "failed to render KML")
		}

		c.Set(fiber.HeaderContentType, "application/vnd.google-earth.kml+xml")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="hazardmap.kml"`)
		return c.Send(buf.Bytes())
	}
}

// ExportGeoJSONHandler serves every current record as a GeoJSON
// FeatureCollection.
func ExportGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		records, err := deps.Records.All(c.UserContext(), nil)
		if err != nil {
			return errFromService(c, err)
		}

		data, err := json.Marshal(export.FeatureCollection(records))
		if err != nil {
			return errInternal(c, "failed to render GeoJSON")
		}

		c.Set(fiber.HeaderContentType, "application/geo+json")
		return c.Send(data)
	}
}
