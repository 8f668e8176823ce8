package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bounty-chat/internal/middleware"
	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/observability"
)

func TestObservabilityLabelsAdminChatRequestsByListType(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(middleware.Observability(zerolog.New(&logs)))
	app.Get("/api/v1/admin/chats", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalCaller, models.Caller{UserID: "admin-7", Role: models.RoleAdmin})
		if c.Query("type") == "archived" {
			return c.Status(fiber.StatusBadRequest).SendString("invalid filters")
		}
		return c.SendString("ok")
	})

	reports := observability.AdminChatRequests().WithLabelValues("/api/v1/admin/chats", "report", "200")
	invalid := observability.AdminChatRequests().WithLabelValues("/api/v1/admin/chats", "invalid", "400")
	beforeReports := testutil.ToFloat64(reports)
	beforeInvalid := testutil.ToFloat64(invalid)

	perform(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/admin/chats?type=REPORT&user_id=u-1", nil))
	require.Equal(t, beforeReports+1, testutil.ToFloat64(reports))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "report", entry["list_type"])
	require.Equal(t, "u-1", entry["filter_user_id"])
	require.Equal(t, "admin-7", entry["admin_id"])
	require.Equal(t, "admin chat request completed", entry["message"])

	logs.Reset()
	perform(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/admin/chats?type=archived", nil))
	require.Equal(t, beforeInvalid+1, testutil.ToFloat64(invalid))
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "admin chat request rejected", entry["message"])
}

func TestObservabilityCountsRejectedChatHandshakes(t *testing.T) {
	var logs bytes.Buffer
	app := fiber.New()
	app.Use(middleware.Observability(zerolog.New(&logs)))
	app.Get("/api/v1/chat/ws", func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderCookie) == "" {
			return fiber.ErrUpgradeRequired
		}
		return c.Status(fiber.StatusUnauthorized).SendString("invalid session")
	})
	app.Get("/api/v1/health", func(c *fiber.Ctx) error { return c.SendString("ok") })

	upgrade := observability.ChatHandshakeRejections().WithLabelValues("426")
	unauthorized := observability.ChatHandshakeRejections().WithLabelValues("401")
	beforeUpgrade := testutil.ToFloat64(upgrade)
	beforeUnauthorized := testutil.ToFloat64(unauthorized)

	resp := perform(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws", nil))
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/ws", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "bad"})
	perform(t, app, req)

	require.Equal(t, beforeUpgrade+1, testutil.ToFloat64(upgrade))
	require.Equal(t, beforeUnauthorized+1, testutil.ToFloat64(unauthorized))
	require.Contains(t, logs.String(), "chat handshake rejected")

	logs.Reset()
	perform(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Empty(t, logs.String())
}
