package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/bloodlink/internal/config"
)

// PingFunc reports whether the data store answers.
type PingFunc func(ctx context.Context) error

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	cfg  *config.Config
	ping PingFunc
}

// NewHealthHandler constructs a HealthHandler. ping may be nil.
func NewHealthHandler(cfg *config.Config, ping PingFunc) *HealthHandler {
	return &HealthHandler{cfg: cfg, ping: ping}
}

// Health reports server and store status.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	db := fiber.Map{
		"driver":     h.cfg.DatabaseDriver,
		"configured": h.cfg.DatabaseConfigured(),
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		db["connected"] = h.ping(ctx) == nil
	}

	return c.JSON(fiber.Map{
		"status":   "ok",
		"message":  "Server is running",
		"env":      h.cfg.Env,
		"database": db,
		"sms":      fiber.Map{"configured": h.cfg.TwilioConfigured()},
	})
}
