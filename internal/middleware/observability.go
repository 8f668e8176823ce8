package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/observability"
)

// Path prefixes of the routes measured by Observability.
const (
	AdminPathPrefix = "/api/v1/admin"
	ChatPathPrefix  = "/api/v1/chat"
)

// Observability records metrics and structured logs for the admin chat console and for
// rejected chat handshakes. Accepted websocket sessions are measured by the chat collectors.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		switch {
		case strings.HasPrefix(path, AdminPathPrefix):
			observeAdminChatRequest(c, logger, responseStatus(c, err), time.Since(start))
		case strings.HasPrefix(path, ChatPathPrefix):
			observeChatHandshake(c, logger, responseStatus(c, err))
		}

		return err
	}
}

func observeAdminChatRequest(c *fiber.Ctx, logger zerolog.Logger, status int, duration time.Duration) {
	route := routeTemplate(c)
	statusLabel := strconv.Itoa(status)
	listType := listTypeLabel(c.Query("type"))

	observability.AdminChatRequests().WithLabelValues(route, listType, statusLabel).Inc()
	observability.AdminChatLatency().WithLabelValues(route, listType).Observe(duration.Seconds())

	event := logger.Info()
	msg := "admin chat request completed"
	switch {
	case status >= fiber.StatusInternalServerError:
		event = logger.Error()
		msg = "admin chat request failed"
	case status >= fiber.StatusBadRequest:
		event = logger.Warn()
		msg = "admin chat request rejected"
	}

	event.
		Str("correlation_id", GetCorrelationID(c)).
		Str("route", route).
		Str("list_type", listType).
		Str("filter_user_id", c.Query("user_id")).
		Str("page", c.Query("page", "1")).
		Str("admin_id", callerID(c)).
		Int("status", status).
		Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
		Msg(msg)
}

func observeChatHandshake(c *fiber.Ctx, logger zerolog.Logger, status int) {
	if status < fiber.StatusBadRequest {
		return
	}

	observability.ChatHandshakeRejections().WithLabelValues(strconv.Itoa(status)).Inc()
	logger.Warn().
		Str("correlation_id", GetCorrelationID(c)).
		Str("route", routeTemplate(c)).
		Int("status", status).
		Str("ip", c.IP()).
		Msg("chat handshake rejected")
}

// responseStatus resolves the status of errors not yet written by the app error handler.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// listTypeLabel bounds the metric label to the known conversation filters.
func listTypeLabel(raw string) string {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "", "all":
		return "all"
	case "admin", "report", "company":
		return value
	default:
		return "invalid"
	}
}

func callerID(c *fiber.Ctx) string {
	if caller, ok := CallerFromLocals(c.Locals(LocalCaller)); ok {
		return caller.UserID
	}
	return ""
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}
