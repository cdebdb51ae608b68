package http

import (
	"github.com/gofiber/fiber/v2"
)

// SearchPlacesHandler geocodes a free-text query. Without lat/lon the
// client's IP position biases the search.
func SearchPlacesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		if query == "" {
			return errBadRequest(c, "q query parameter is required")
		}
		if len(query) > 200 {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		ref, err := parseRef(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		places, err := deps.Places.Search(c.UserContext(), query, ref, clientIP(c))
		if err != nil {
			return errFromService(c, err)
		}
		return c.JSON(fiber.Map{"data": places})
	}
}
