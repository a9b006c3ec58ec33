package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/bloodlink/internal/services"
	"github.com/example/bloodlink/internal/validation"
)

// ErrorHandler renders every error as {"success": false, "error": ...}.
// Validation failures also carry the per-field messages.
func ErrorHandler(log logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if verr, ok := validation.AsErrors(err); ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   verr.Messages(),
				"fields":  verr.Fields,
			})
		}

		status, message := classify(err)
		if status >= fiber.StatusInternalServerError && status != fiber.StatusBadGateway {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Method(),
				"path":   c.Path(),
			}).Error("request failed")
		}

		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

func classify(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	var se *services.Error
	if errors.As(err, &se) {
		switch {
		case errors.Is(se, services.ErrBadRequest):
			return fiber.StatusBadRequest, se.Message
		case errors.Is(se, services.ErrUnauthorized):
			return fiber.StatusUnauthorized, se.Message
		case errors.Is(se, services.ErrForbidden):
			return fiber.StatusForbidden, se.Message
		case errors.Is(se, services.ErrNotFound):
			return fiber.StatusNotFound, se.Message
		case errors.Is(se, services.ErrConflict):
			return fiber.StatusConflict, se.Message
		case errors.Is(se, services.ErrUpstream):
			return fiber.StatusBadGateway, se.Message
		}
	}

	return fiber.StatusInternalServerError, "Server Error"
}
