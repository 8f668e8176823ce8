package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bounty-chat/internal/config"
	"github.com/noah-isme/bounty-chat/internal/handler"
)

func TestHealthCheckReportsDependencies(t *testing.T) {
	cfg := config.Config{AppName: "Bounty Chat", AppEnv: "test"}
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := fiber.New()
	app.Get("/healthy", handler.HealthCheck(cfg, map[string]handler.HealthProbe{"database": up}))
	app.Get("/degraded", handler.HealthCheck(cfg, map[string]handler.HealthProbe{"database": up, "redis": down}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthy", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var healthy struct {
		Success bool                   `json:"success"`
		Data    handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &healthy)
	require.True(t, healthy.Success)
	require.Equal(t, "ok", healthy.Data.Status)
	require.Equal(t, "Bounty Chat", healthy.Data.Service)
	require.Equal(t, map[string]string{"database": "up"}, healthy.Data.Dependencies)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/degraded", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	var degraded struct {
		Success bool                   `json:"success"`
		Details handler.HealthResponse `json:"details"`
	}
	decodeResponse(t, resp, &degraded)
	require.False(t, degraded.Success)
	require.Equal(t, "degraded", degraded.Details.Status)
	require.Equal(t, "down", degraded.Details.Dependencies["redis"])
	require.Equal(t, "up", degraded.Details.Dependencies["database"])
}
