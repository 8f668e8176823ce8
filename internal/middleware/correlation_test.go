package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bounty-chat/internal/middleware"
)

func TestCorrelationIDPrefersHeaderThenQuery(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(middleware.CorrelationIDFromContext(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/?correlation_id=from-query", nil)
	req.Header.Set("X-Correlation-ID", "from-header")
	resp := perform(t, app, req)
	require.Equal(t, "from-header", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "from-header", readBody(t, resp))

	resp = perform(t, app, httptest.NewRequest(http.MethodGet, "/?correlation_id=from-query", nil))
	require.Equal(t, "from-query", readBody(t, resp))

	resp = perform(t, app, httptest.NewRequest(http.MethodGet, "/?correlation_id="+strings.Repeat("x", 300), nil))
	require.Len(t, readBody(t, resp), 128)

	resp = perform(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, readBody(t, resp))
}
