package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bounty-chat/internal/middleware"
	"github.com/noah-isme/bounty-chat/internal/models"
)

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	app := newRoleApp(models.Caller{UserID: "admin-1", Role: models.RoleAdmin})

	resp := perform(t, app, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	app := newRoleApp(models.Caller{UserID: "user-1", Role: models.RoleUser})

	resp := perform(t, app, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireRoleRejectsAnonymous(t *testing.T) {
	app := newRoleApp(models.Caller{})

	resp := perform(t, app, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func newRoleApp(caller models.Caller) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if caller.UserID != "" {
			c.Locals(middleware.LocalCaller, caller)
		}
		return c.Next()
	})
	app.Use(middleware.RequireRole(models.RoleAdmin))
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func perform(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}
