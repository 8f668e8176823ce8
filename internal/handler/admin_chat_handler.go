package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/service"
	"github.com/noah-isme/bounty-chat/internal/utils"
)

// AdminChatHandler exposes the admin conversation listing.
type AdminChatHandler struct {
	service service.AdminChatService
	logger  zerolog.Logger
}

// NewAdminChatHandler constructs the handler.
func NewAdminChatHandler(service service.AdminChatService, logger zerolog.Logger) *AdminChatHandler {
	return &AdminChatHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_chat_handler").Logger(),
	}
}

// Register mounts the admin chat routes.
func (h *AdminChatHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
}

func (h *AdminChatHandler) list(c *fiber.Ctx) error {
	var req dto.AdminChatListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	result, err := h.service.List(requestContext(c), req)
	if err != nil {
		if isValidationError(err) {
			return utils.Fail(c, fiber.StatusBadRequest, "invalid filters", err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list chats")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list chats")
	}

	return utils.OK(c, result.Items, "chats retrieved", result.Pagination)
}
