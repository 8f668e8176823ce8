package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/models"
)

// MessageRepository persists chat messages.
type MessageRepository interface {
	Save(ctx context.Context, message *models.Message) error
	ListByChat(ctx context.Context, chatID string) ([]models.Message, error)
	LatestByChats(ctx context.Context, chatIDs []string) (map[string]models.Message, error)
	CountByChats(ctx context.Context, chatIDs []string) (map[string]int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Save inserts the message and reloads it with the sender's profile.
func (r *messageRepository) Save(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Omit("Sender").Create(message).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("Sender").First(message, message.ID).Error
}

// ListByChat returns the full history of a conversation in write order, oldest first.
func (r *messageRepository) ListByChat(ctx context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("chat_id = ?", chatID).
		Order("id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *messageRepository) LatestByChats(ctx context.Context, chatIDs []string) (map[string]models.Message, error) {
	latest := make(map[string]models.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return latest, nil
	}

	newest := r.db.Model(&models.Message{}).Select("MAX(id)").Where("chat_id IN ?", chatIDs).Group("chat_id")

	var messages []models.Message
	if err := r.db.WithContext(ctx).Preload("Sender").Where("id IN (?)", newest).Find(&messages).Error; err != nil {
		return nil, err
	}

	for _, message := range messages {
		latest[message.ChatID] = message
	}
	return latest, nil
}

// CountByChats returns the number of messages per conversation. Conversations without messages are absent.
func (r *messageRepository) CountByChats(ctx context.Context, chatIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(chatIDs))
	if len(chatIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ChatID string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("chat_id, COUNT(*) AS total").
		Where("chat_id IN ?", chatIDs).
		Group("chat_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.ChatID] = row.Total
	}
	return counts, nil
}
