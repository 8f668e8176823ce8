package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/middleware"
	"github.com/noah-isme/bounty-chat/internal/service"
	"github.com/noah-isme/bounty-chat/internal/utils"
)

const localRequestContext = "request_ctx"

// ChatHandler wires the chat websocket endpoint.
type ChatHandler struct {
	service  service.ChatService
	identity *middleware.IdentityResolver
	logger   zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, identity *middleware.IdentityResolver, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:  service,
		identity: identity,
		logger:   logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds the websocket route. guards run after authentication and before the upgrade.
func (h *ChatHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Use("/ws", h.authenticate)

	handlers := make([]fiber.Handler, 0, len(guards)+1)
	handlers = append(handlers, guards...)
	handlers = append(handlers, websocket.New(h.handleConnection))
	router.Get("/ws", handlers...)
}

// authenticate resolves the caller before the upgrade. Unauthenticated handshakes never reach the chat core.
func (h *ChatHandler) authenticate(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	caller, err := h.identity.ResolveRequest(c)
	if err != nil {
		chatErr := service.ClassifyError(err)
		requestLogger(h.logger, c).Debug().Str("code", chatErr.Code).Msg("rejected chat handshake")
		return utils.SendError(c, fiber.StatusUnauthorized, chatErr.Message)
	}

	c.Locals(middleware.LocalCaller, caller)
	c.Locals(middleware.LocalUserID, caller.UserID)
	c.Locals(middleware.LocalUserRole, string(caller.Role))
	c.Locals(localRequestContext, requestContext(c))
	return c.Next()
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	caller, ok := middleware.CallerFromLocals(conn.Locals(middleware.LocalCaller))
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals(localRequestContext).(context.Context)
	opts := service.ChatConnectionOptions{
		Caller:        caller,
		CorrelationID: middleware.CorrelationIDFromContext(baseCtx),
		Context:       baseCtx,
	}

	h.logger.Info().Str("user_id", caller.UserID).Str("role", string(caller.Role)).Msg("chat websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Str("user_id", caller.UserID).Msg("chat websocket disconnected")
}
