package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/eduguide-api/internal/config"
	"github.com/noah-isme/eduguide-api/internal/utils"
)

// Pinger reports whether a backing store answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Database    string    `json:"database,omitempty"`
}

// HealthCheck returns a handler that reports application health. A nil db skips the store check.
func HealthCheck(cfg config.Config, db Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()

			payload.Database = "up"
			if err := db.PingContext(ctx); err != nil {
				payload.Status = "degraded"
				payload.Database = "down"
				return c.Status(fiber.StatusServiceUnavailable).JSON(utils.APIResponse{
					Success: false,
					Data:    payload,
					Message: "database unreachable",
				})
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
