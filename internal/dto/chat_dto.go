package dto

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/noah-isme/bounty-chat/internal/models"
)

// Websocket event names. Clients may omit the "chat:" prefix on inbound events.
const (
	EventJoin         = "chat:join"
	EventHistory      = "chat:history"
	EventMessage      = "chat:message"
	EventTyping       = "chat:typing"
	EventLeave        = "chat:leave"
	EventOnlineStatus = "chat:online.status"
	EventError        = "chat:error"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const eventPrefix = "chat:"

// ClientEvent is a single inbound frame from a websocket client.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Name returns the canonical event name for the frame.
func (e ClientEvent) Name() string {
	name := strings.ToLower(strings.TrimSpace(e.Event))
	if name == "" {
		return ""
	}
	if !strings.HasPrefix(name, eventPrefix) {
		name = eventPrefix + name
	}
	return name
}

// ServerEvent is the envelope for every outbound frame.
type ServerEvent struct {
	Event   string      `json:"event"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// NewSuccessEvent wraps data in a success envelope.
func NewSuccessEvent(event, message string, data interface{}) ServerEvent {
	if message == "" {
		message = "success"
	}
	return ServerEvent{Event: event, Status: StatusSuccess, Message: message, Data: data}
}

// NewErrorEvent builds the error envelope. Data is always null.
func NewErrorEvent(message string) ServerEvent {
	if message == "" {
		message = "error"
	}
	return ServerEvent{Event: EventError, Status: StatusError, Message: message}
}

// ChatJoinPayload asks to join a conversation. An empty payload requests the direct admin chat.
type ChatJoinPayload struct {
	ReportID string `json:"report_id" validate:"omitempty,max=36"`
	ChatID   string `json:"chat_id" validate:"omitempty,max=36"`
}

// ChatHistoryPayload requests the full history of a conversation.
type ChatHistoryPayload struct {
	ChatID string `json:"chat_id"`
}

// ChatMessagePayload carries a new message for a conversation.
type ChatMessagePayload struct {
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// ChatTypingPayload toggles the typing indicator for a conversation.
type ChatTypingPayload struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"isTyping"`
}

// ChatLeavePayload leaves a room. Either field identifies it.
type ChatLeavePayload struct {
	RoomID string `json:"room_id"`
	ChatID string `json:"chat_id"`
}

// ChatSenderResponse is the public profile attached to messages.
type ChatSenderResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	AvatarURL string `json:"avatar_url"`
	Role      string `json:"role"`
}

// NewChatSenderResponse converts a user into its public profile. A nil user yields nil.
func NewChatSenderResponse(user *models.User) *ChatSenderResponse {
	if user == nil {
		return nil
	}
	return &ChatSenderResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
		Role:      string(user.Role),
	}
}

// ChatMessageResponse is the serialized representation of a chat message.
type ChatMessageResponse struct {
	ID        uint                `json:"id"`
	ChatID    string              `json:"chat_id"`
	SenderID  string              `json:"sender_id"`
	Content   string              `json:"content"`
	CreatedAt time.Time           `json:"created_at"`
	Sender    *ChatSenderResponse `json:"sender,omitempty"`
}

// NewChatMessageResponse converts a model into a DTO.
func NewChatMessageResponse(message models.Message) ChatMessageResponse {
	return ChatMessageResponse{
		ID:        message.ID,
		ChatID:    message.ChatID,
		SenderID:  message.SenderID,
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
		Sender:    NewChatSenderResponse(message.Sender),
	}
}

// NewChatMessageResponseSlice converts a slice of models into DTOs.
func NewChatMessageResponseSlice(messages []models.Message) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, NewChatMessageResponse(message))
	}
	return out
}

// ConversationResponse is the serialized representation of a conversation.
type ConversationResponse struct {
	ID        string              `json:"id"`
	RoomID    string              `json:"room_id"`
	UserID    string              `json:"user_id"`
	ReportID  *string             `json:"report_id"`
	CompanyID *string             `json:"company_id"`
	IsAdmin   bool                `json:"is_admin"`
	User      *ChatSenderResponse `json:"user,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewConversationResponse converts a model into a DTO.
func NewConversationResponse(chat models.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:        chat.ID,
		RoomID:    chat.RoomID(),
		UserID:    chat.UserID,
		ReportID:  chat.ReportID,
		CompanyID: chat.CompanyID,
		IsAdmin:   chat.IsAdmin,
		User:      NewChatSenderResponse(chat.User),
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
}

// ChatJoinResponse acknowledges a successful join.
type ChatJoinResponse struct {
	ChatID string `json:"chatId"`
	RoomID string `json:"roomId"`
}

// ChatHistoryResponse carries the ordered history of a conversation.
type ChatHistoryResponse struct {
	Messages []ChatMessageResponse `json:"messages"`
	Chat     ConversationResponse  `json:"chat"`
	Online   bool                  `json:"online"`
}

// ChatMessageEvent is fanned out to the room for every persisted message.
type ChatMessageEvent struct {
	Message ChatMessageResponse `json:"message"`
	Online  bool                `json:"online"`
}

// ChatTypingEvent is relayed to the other members of a room.
type ChatTypingEvent struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// OnlineStatusEvent announces the recomputed presence of a room.
type OnlineStatusEvent struct {
	Online bool `json:"online"`
}

// ChatLeaveResponse acknowledges a leave request.
type ChatLeaveResponse struct {
	RoomID string `json:"roomId"`
}
