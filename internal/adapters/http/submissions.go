package http

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// CreateRecordHandler validates a submission body against the kind's JSON
// schema and hands it to the submission service. Inline stores answer 201,
// workflow hand-offs 202.
func CreateRecordHandler(deps *Dependencies, kind domain.Kind, validator *SubmissionValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()
		if len(body) == 0 {
			return errBadRequest(c, "request body is required")
		}

		if err := validator.Validate(kind, body); err != nil {
			if errors.Is(err, ErrMalformedBody) {
				return errBadRequest(c, err.Error())
			}
			return errUnprocessable(c, err.Error())
		}

		var sub domain.Submission
		if err := json.Unmarshal(body, &sub); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		sub.Kind = kind
		sub.Center = nil

		res, err := deps.Submissions.Submit(c.UserContext(), &sub)
		if err != nil {
			return errFromService(c, err)
		}

		if res.Status == "accepted" {
			return c.Status(fiber.StatusAccepted).JSON(res)
		}
		c.Location(c.Path() + "/" + res.RecordID)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// DeleteRecordHandler removes a record from the records backend.
func DeleteRecordHandler(deps *Dependencies, kind domain.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "record id is required")
		}
		if err := deps.Submissions.Delete(c.UserContext(), kind, id); err != nil {
			return errFromService(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
