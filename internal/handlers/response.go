package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/middleware"
	"github.com/example/bloodlink/internal/models"
)

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func respondList[T any](c *fiber.Ctx, items []T, extra fiber.Map) error {
	if items == nil {
		items = []T{}
	}
	body := fiber.Map{
		"success": true,
		"count":   len(items),
		"data":    items,
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(body)
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}

func currentDonor(c *fiber.Ctx) (*models.Donor, error) {
	donor, ok := middleware.CurrentDonor(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "Not authorized, no token")
	}
	return donor, nil
}

// authPayload is a donor profile with its session token alongside.
type authPayload struct {
	*models.Donor
	Token string `json:"token"`
}
