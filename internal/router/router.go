package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/bounty-chat/internal/config"
	"github.com/noah-isme/bounty-chat/internal/handler"
	"github.com/noah-isme/bounty-chat/internal/middleware"
	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ChatHandler       *handler.ChatHandler
	AdminChatHandler  *handler.AdminChatHandler
	SessionMiddleware fiber.Handler
	ConnectLimiter    fiber.Handler
	HealthProbes      map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	// Use provided session middleware, or a no-op if nil
	session := deps.SessionMiddleware
	if session == nil {
		session = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Chat websocket authenticates the handshake itself
	if deps.ChatHandler != nil {
		var guards []fiber.Handler
		if deps.ConnectLimiter != nil {
			guards = append(guards, deps.ConnectLimiter)
		}
		deps.ChatHandler.Register(api.Group("/chat"), guards...)
	}

	// Admin console
	if deps.AdminChatHandler != nil {
		admin := app.Group(middleware.AdminPathPrefix, session, middleware.RequireRole(models.RoleAdmin))
		deps.AdminChatHandler.Register(admin.Group("/chats"))
	}
}
