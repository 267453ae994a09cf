package unit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/eduguide-api/internal/config"
	"github.com/noah-isme/eduguide-api/internal/handler"
)

type response struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    handler.HealthResponse `json:"data"`
}

type pinger struct {
	err error
}

func (p pinger) PingContext(context.Context) error {
	return p.err
}

func checkHealth(t *testing.T, db handler.Pinger) (int, response) {
	t.Helper()

	cfg := config.Config{
		AppName: "EduGuide API",
		AppEnv:  "test",
	}

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg, db))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}

	var payload response
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestHealthCheck(t *testing.T) {
	status, payload := checkHealth(t, nil)

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, "EduGuide API", payload.Data.Service)
	assert.Equal(t, "test", payload.Data.Environment)
	assert.Empty(t, payload.Data.Database)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestHealthCheckReportsDatabase(t *testing.T) {
	status, payload := checkHealth(t, pinger{})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "up", payload.Data.Database)

	status, payload = checkHealth(t, pinger{err: errors.New("connection refused")})
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.False(t, payload.Success)
	assert.Equal(t, "database unreachable", payload.Message)
	assert.Equal(t, "degraded", payload.Data.Status)
	assert.Equal(t, "down", payload.Data.Database)
}
