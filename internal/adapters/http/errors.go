package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
	"github.com/samirrijal/hazardmap/internal/pkg/geospatial"
	"github.com/samirrijal/hazardmap/internal/pkg/logging"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, unprocessable, internal_error, bad_gateway
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errUnprocessable returns a 422 error.
func errUnprocessable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnprocessableEntity, "unprocessable", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errBadGateway returns a 502 error for records backend or geocoder failures.
func errBadGateway(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadGateway, "bad_gateway", msg)
}

// errFromService maps a usecase error to a response. Anything unrecognised
// is an upstream failure, since handlers only call services that talk to
// the records backend or the geocoder.
func errFromService(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, usecases.ErrNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, usecases.ErrInvalidSubmission),
		errors.Is(err, geospatial.ErrEmptyPolygon):
		return errUnprocessable(c, err.Error())
	case errors.Is(err, usecases.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidKind):
		return errBadRequest(c, err.Error())
	}
	logging.FromContext(c.UserContext()).Error("upstream request failed", "error", err)
	return errBadGateway(c, "records backend unavailable")
}
