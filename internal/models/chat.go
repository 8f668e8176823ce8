package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a durable thread between one user and either the admin pool or a company.
// ConversationKey encodes the uniqueness rules and backs the find-or-create path.
type Conversation struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationKey string    `gorm:"size:160;uniqueIndex;not null" json:"-"`
	UserID          string    `gorm:"size:36;index;not null" json:"user_id"`
	ReportID        *string   `gorm:"size:36;index" json:"report_id"`
	CompanyID       *string   `gorm:"size:36;index" json:"company_id"`
	IsAdmin         bool      `gorm:"not null;default:false" json:"is_admin"`
	User            *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName pins the table name used by the rest of the platform.
func (Conversation) TableName() string {
	return "chats"
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// RoomID derives the runtime room identifier. There is exactly one room per conversation row.
func (c Conversation) RoomID() string {
	return RoomIDForChat(c.ID)
}

// RoomIDForChat returns the room identifier for a conversation primary key.
func RoomIDForChat(chatID string) string {
	return "chat_" + chatID
}

// AdminConversationKey is the key of a user's single direct admin conversation.
func AdminConversationKey(userID string) string {
	return fmt.Sprintf("user:%s:admin", userID)
}

// ReportConversationKey is the key of the conversation scoped to one report.
func ReportConversationKey(userID, reportID string) string {
	return fmt.Sprintf("user:%s:report:%s", userID, reportID)
}

// CompanyConversationKey is the key of a user's conversation with a company outside any report.
func CompanyConversationKey(userID, companyID string) string {
	return fmt.Sprintf("user:%s:company:%s", userID, companyID)
}

// Message is an immutable entry in a conversation. The autoincrement ID preserves write order.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    string    `gorm:"size:36;index;not null" json:"chat_id"`
	SenderID  string    `gorm:"size:36;index;not null" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Sender    *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
