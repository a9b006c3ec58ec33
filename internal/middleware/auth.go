package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/models"
	"github.com/example/bloodlink/internal/services"
)

const donorContextKey = "currentDonor"

// Authenticator resolves a bearer token to the donor it was issued for.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Donor, error)
}

// Protect validates the bearer token and loads the authenticated donor into context.
func Protect(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, no token")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, no token")
		}

		donor, err := auth.Authenticate(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}

		c.Locals(donorContextKey, donor)
		return c.Next()
	}
}

// AdminOnly rejects authenticated donors without admin rights. It must run
// after Protect.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		donor, ok := CurrentDonor(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Not authorized, no token")
		}
		if !donor.IsAdmin {
			return fiber.NewError(fiber.StatusForbidden, "Not authorized as an admin")
		}
		return c.Next()
	}
}

// CurrentDonor extracts the authenticated donor from context.
func CurrentDonor(c *fiber.Ctx) (*models.Donor, bool) {
	donor, ok := c.Locals(donorContextKey).(*models.Donor)
	return donor, ok && donor != nil
}

// compile-time check
var _ Authenticator = (*services.DonorService)(nil)
