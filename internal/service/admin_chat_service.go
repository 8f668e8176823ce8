package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/repository"
)

const (
	defaultAdminChatPageSize = 20
	adminChatPreviewLength   = 140
)

// AdminChatService lists conversations for the admin console.
type AdminChatService interface {
	List(ctx context.Context, req dto.AdminChatListRequest) (dto.AdminChatListResponse, error)
}

type adminChatService struct {
	chats     repository.ConversationRepository
	messages  repository.MessageRepository
	presence  *PresenceTracker
	validator *validator.Validate
	preview   *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAdminChatService constructs the admin conversation listing service.
func NewAdminChatService(chats repository.ConversationRepository, messages repository.MessageRepository, presence *PresenceTracker, validate *validator.Validate, logger zerolog.Logger) AdminChatService {
	return &adminChatService{
		chats:     chats,
		messages:  messages,
		presence:  presence,
		validator: validate,
		preview:   bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "admin_chat_service").Logger(),
	}
}

func (s *adminChatService) List(ctx context.Context, req dto.AdminChatListRequest) (dto.AdminChatListResponse, error) {
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.UserID = strings.TrimSpace(req.UserID)
	if err := s.validator.Struct(req); err != nil {
		return dto.AdminChatListResponse{}, err
	}

	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultAdminChatPageSize
	}

	filter := repository.ConversationFilter{
		Kind:     conversationKind(req.Type),
		UserID:   req.UserID,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	chats, total, err := s.chats.List(ctx, filter)
	if err != nil {
		return dto.AdminChatListResponse{}, fmt.Errorf("list chats: %w", err)
	}

	ids := make([]string, 0, len(chats))
	for _, chat := range chats {
		ids = append(ids, chat.ID)
	}
	latest, err := s.messages.LatestByChats(ctx, ids)
	if err != nil {
		return dto.AdminChatListResponse{}, fmt.Errorf("load latest messages: %w", err)
	}
	counts, err := s.messages.CountByChats(ctx, ids)
	if err != nil {
		return dto.AdminChatListResponse{}, fmt.Errorf("count messages: %w", err)
	}

	items := make([]dto.AdminChatSummary, 0, len(chats))
	for _, chat := range chats {
		summary := dto.AdminChatSummary{
			ConversationResponse: dto.NewConversationResponse(chat),
			MessageCount:         counts[chat.ID],
			Online:               s.presence.IsOnline(chat.RoomID()),
		}
		if message, ok := latest[chat.ID]; ok {
			response := dto.NewChatMessageResponse(message)
			summary.LastMessage = &response
			summary.LastMessagePreview = s.previewOf(message.Content)
		}
		items = append(items, summary)
	}

	return dto.AdminChatListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// previewOf renders a short markup-free excerpt of a message for the console's conversation list.
func (s *adminChatService) previewOf(content string) string {
	excerpt := strings.Join(strings.Fields(s.preview.Sanitize(content)), " ")
	runes := []rune(excerpt)
	if len(runes) <= adminChatPreviewLength {
		return excerpt
	}
	cut := string(runes[:adminChatPreviewLength])
	// Do not split an escaped entity such as &amp;.
	if amp := strings.LastIndex(cut, "&"); amp >= 0 && !strings.Contains(cut[amp:], ";") {
		cut = cut[:amp]
	}
	return strings.TrimSpace(cut) + "…"
}

func conversationKind(listType string) string {
	switch listType {
	case dto.ChatListTypeAdmin:
		return repository.ConversationKindAdmin
	case dto.ChatListTypeReport:
		return repository.ConversationKindReport
	case dto.ChatListTypeCompany:
		return repository.ConversationKindCompany
	default:
		return repository.ConversationKindAll
	}
}
