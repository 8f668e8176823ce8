package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/observability"
	"github.com/noah-isme/bounty-chat/internal/repository"
)

const (
	defaultSendBufferSize = 32
	defaultPingInterval   = 30 * time.Second

	messageSourceLocal = "local"
	messageSourceRelay = "relay"
)

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	Caller        models.Caller
	CorrelationID string
	Context       context.Context
}

// ChatService manages websocket chat connections, presence and message delivery.
type ChatService interface {
	ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions)
	Join(ctx context.Context, caller models.Caller, request JoinRequest) (models.Conversation, error)
	History(ctx context.Context, chatID string) (dto.ChatHistoryResponse, error)
	Send(ctx context.Context, caller models.Caller, payload dto.ChatMessagePayload) (dto.ChatMessageEvent, error)
	NotifyTyping(ctx context.Context, caller models.Caller, payload dto.ChatTypingPayload)
	Start(ctx context.Context)
}

// ChatServiceOptions carries the optional infrastructure and tuning of the chat service.
type ChatServiceOptions struct {
	Redis        *redis.Client
	NATS         *nats.Conn
	ChannelBase  string
	CacheTTL     time.Duration
	SendBuffer   int
	PingInterval time.Duration
}

type chatService struct {
	resolver     ConversationResolver
	chats        repository.ConversationRepository
	messages     repository.MessageRepository
	presence     *PresenceTracker
	cache        *conversationCache
	relay        *chatRelay
	roomLocks    *keyedMutex
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sendBuffer   int
	pingInterval time.Duration
}

// NewChatService creates a websocket chat service instance.
func NewChatService(resolver ConversationResolver, chats repository.ConversationRepository, messages repository.MessageRepository, presence *PresenceTracker, validate *validator.Validate, logger zerolog.Logger, opts ChatServiceOptions) ChatService {
	cachePrefix := ""
	redisChannel := ""
	natsSubject := ""
	if opts.ChannelBase != "" {
		cachePrefix = opts.ChannelBase + ":conversation"
		redisChannel = opts.ChannelBase + ":events"
		natsSubject = strings.ReplaceAll(opts.ChannelBase, ":", ".") + ".events"
	}

	sendBuffer := opts.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBufferSize
	}
	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	serviceLogger := logger.With().Str("component", "chat_service").Logger()

	return &chatService{
		resolver:  resolver,
		chats:     chats,
		messages:  messages,
		presence:  presence,
		cache:     newConversationCache(chats, opts.Redis, cachePrefix, opts.CacheTTL, logger),
		roomLocks: newKeyedMutex(),
		relay: &chatRelay{
			redis:        opts.Redis,
			redisChannel: redisChannel,
			nats:         opts.NATS,
			natsSubject:  natsSubject,
			nodeID:       uuid.NewString(),
			logger:       logger.With().Str("component", "chat_relay").Logger(),
		},
		validator:    validate,
		logger:       serviceLogger,
		tracer:       otel.Tracer("github.com/noah-isme/bounty-chat/internal/service/chat"),
		sendBuffer:   sendBuffer,
		pingInterval: pingInterval,
	}
}

func (s *chatService) Start(ctx context.Context) {
	s.relay.start(ctx, s.handleRelayEvent)
}

func (s *chatService) ServeConnection(conn *websocket.Conn, opts ChatConnectionOptions) {
	s.serve(conn, opts)
}

func (s *chatService) Join(ctx context.Context, caller models.Caller, request JoinRequest) (models.Conversation, error) {
	return s.resolver.ResolveOrCreate(ctx, caller, request)
}

func (s *chatService) History(ctx context.Context, chatID string) (dto.ChatHistoryResponse, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return dto.ChatHistoryResponse{}, ErrMissingChatID
	}

	ctx, span := s.tracer.Start(ctx, "chat.history", trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer span.End()

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChatHistoryResponse{}, ErrChatNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ChatHistoryResponse{}, fmt.Errorf("load chat %s: %w", chatID, err)
	}

	messages, err := s.messages.ListByChat(ctx, chat.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ChatHistoryResponse{}, fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}

	return dto.ChatHistoryResponse{
		Messages: dto.NewChatMessageResponseSlice(messages),
		Chat:     dto.NewConversationResponse(chat),
		Online:   s.presence.IsOnline(chat.RoomID()),
	}, nil
}

func (s *chatService) Send(ctx context.Context, caller models.Caller, payload dto.ChatMessagePayload) (dto.ChatMessageEvent, error) {
	payload.ChatID = strings.TrimSpace(payload.ChatID)

	// Content is stored verbatim apart from trimming; clients escape it when rendering.
	payload.Content = strings.TrimSpace(payload.Content)
	if payload.Content == "" {
		return dto.ChatMessageEvent{}, ErrEmptyContent
	}
	if payload.ChatID == "" {
		return dto.ChatMessageEvent{}, ErrMissingChatID
	}

	chat, err := s.cache.Get(ctx, payload.ChatID)
	if err != nil {
		return dto.ChatMessageEvent{}, err
	}
	roomID := chat.RoomID()

	ctx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("chat.id", chat.ID),
		attribute.String("chat.room_id", roomID),
		attribute.String("chat.sender_id", caller.UserID),
	))
	defer span.End()

	// Persist and fan out under the room lock so every member sees the write order.
	unlock := s.roomLocks.Lock(roomID)
	message := models.Message{
		ChatID:   chat.ID,
		SenderID: caller.UserID,
		Content:  payload.Content,
	}
	if err := s.messages.Save(ctx, &message); err != nil {
		unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return dto.ChatMessageEvent{}, fmt.Errorf("save message: %w", err)
	}

	response := dto.NewChatMessageResponse(message)
	online, _ := s.presence.BroadcastWithPresence(roomID, func(online bool) dto.ServerEvent {
		return messageEvent(response, online)
	})
	unlock()

	if err := s.chats.Touch(ctx, chat.ID, message.CreatedAt); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", chat.ID).Msg("failed to touch chat")
	}
	if err := s.relay.publish(ctx, relayEvent{Kind: relayKindMessage, RoomID: roomID, Message: &response}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish chat event")
	}

	observability.ChatMessagesSent().WithLabelValues(messageSourceLocal).Inc()

	return dto.ChatMessageEvent{Message: response, Online: online}, nil
}

func (s *chatService) NotifyTyping(ctx context.Context, caller models.Caller, payload dto.ChatTypingPayload) {
	chatID := strings.TrimSpace(payload.ChatID)
	if chatID == "" {
		return
	}

	chat, err := s.cache.Get(ctx, chatID)
	if err != nil {
		s.logger.Debug().Err(err).Str("chat_id", chatID).Msg("dropping typing signal")
		return
	}

	typing := dto.ChatTypingEvent{UserID: caller.UserID, IsTyping: payload.IsTyping}
	s.presence.BroadcastExcept(chat.RoomID(), typingEvent(typing), caller.UserID)

	if err := s.relay.publish(ctx, relayEvent{Kind: relayKindTyping, RoomID: chat.RoomID(), Typing: &typing}); err != nil {
		s.logger.Debug().Err(err).Msg("failed to publish typing event")
	}
}

// handleRelayEvent replays an event from another node into the local room.
func (s *chatService) handleRelayEvent(event relayEvent) {
	switch event.Kind {
	case relayKindMessage:
		if event.Message == nil {
			return
		}
		message := *event.Message
		unlock := s.roomLocks.Lock(event.RoomID)
		s.presence.BroadcastWithPresence(event.RoomID, func(online bool) dto.ServerEvent {
			return messageEvent(message, online)
		})
		unlock()
		observability.ChatMessagesSent().WithLabelValues(messageSourceRelay).Inc()
	case relayKindTyping:
		if event.Typing == nil {
			return
		}
		s.presence.BroadcastExcept(event.RoomID, typingEvent(*event.Typing), event.Typing.UserID)
	default:
		s.logger.Warn().Str("kind", event.Kind).Msg("unknown chat relay event")
	}
}

func messageEvent(message dto.ChatMessageResponse, online bool) dto.ServerEvent {
	return dto.NewSuccessEvent(dto.EventMessage, "new message", dto.ChatMessageEvent{Message: message, Online: online})
}

func typingEvent(typing dto.ChatTypingEvent) dto.ServerEvent {
	return dto.NewSuccessEvent(dto.EventTyping, "typing", typing)
}
