package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesAndReplaces(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "import-42")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "import-42", resp.Header.Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", strings.Repeat("x", 200))
	resp, err = app.Test(req)
	require.NoError(t, err)
	generated := resp.Header.Get("X-Correlation-ID")
	require.Len(t, generated, 36)
}
