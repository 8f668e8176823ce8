package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/bounty-chat/internal/models"
)

// ErrConversationKeyMissing is returned when a conversation is created without its uniqueness key.
var ErrConversationKeyMissing = errors.New("conversation key must not be empty")

// Conversation listing filters.
const (
	ConversationKindAll     = ""
	ConversationKindAdmin   = "admin"
	ConversationKindReport  = "report"
	ConversationKindCompany = "company"
)

// ConversationFilter narrows the admin conversation listing.
type ConversationFilter struct {
	Kind     string
	UserID   string
	Page     int
	PageSize int
}

// ConversationRepository persists conversations (the "chats" table).
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, candidate models.Conversation) (models.Conversation, error)
	GetByID(ctx context.Context, id string) (models.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, int64, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a conversation repository backed by GORM.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindOrCreate inserts the candidate unless a row with the same key exists, then returns the stored row.
// The unique index on conversation_key makes concurrent calls converge on a single row.
func (r *conversationRepository) FindOrCreate(ctx context.Context, candidate models.Conversation) (models.Conversation, error) {
	if candidate.ConversationKey == "" {
		return models.Conversation{}, ErrConversationKeyMissing
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "conversation_key"}}, DoNothing: true}).
		Create(&candidate).Error
	if err != nil {
		return models.Conversation{}, err
	}

	var stored models.Conversation
	if err := r.db.WithContext(ctx).Preload("User").Where("conversation_key = ?", candidate.ConversationKey).First(&stored).Error; err != nil {
		return models.Conversation{}, err
	}
	return stored, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (models.Conversation, error) {
	var chat models.Conversation
	if err := r.db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&chat).Error; err != nil {
		return models.Conversation{}, err
	}
	return chat, nil
}

func (r *conversationRepository) List(ctx context.Context, filter ConversationFilter) ([]models.Conversation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Conversation{})

	switch filter.Kind {
	case ConversationKindAdmin:
		query = query.Where("is_admin = ?", true)
	case ConversationKindReport:
		query = query.Where("report_id IS NOT NULL")
	case ConversationKindCompany:
		query = query.Where("company_id IS NOT NULL AND report_id IS NULL")
	}

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("updated_at DESC").Order("id ASC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Limit(filter.PageSize).Offset((page - 1) * filter.PageSize)
	}

	var chats []models.Conversation
	if err := query.Preload("User").Find(&chats).Error; err != nil {
		return nil, 0, err
	}

	return chats, total, nil
}

func (r *conversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).UpdateColumn("updated_at", at).Error
}
