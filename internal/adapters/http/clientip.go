package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// clientIP returns the caller's address, preferring the usual reverse proxy
// headers over the socket address. Only use it for non-security decisions
// such as geocoding bias.
func clientIP(c *fiber.Ctx) string {
	if x := c.Get("X-Forwarded-For"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	if x := c.Get("CF-Connecting-IP"); x != "" {
		return x
	}
	if x := c.Get("X-Real-IP"); x != "" {
		return x
	}
	if x := c.Get("X-Client-IP"); x != "" {
		return x
	}
	if x := c.Get("Forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\"[]")
		}
	}
	return c.IP()
}
