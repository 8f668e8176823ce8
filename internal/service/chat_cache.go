package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/repository"
)

const defaultConversationCacheTTL = 10 * time.Minute

// conversationCache fronts conversation lookups by id with Redis. Without Redis it reads through to the store.
type conversationCache struct {
	repo   repository.ConversationRepository
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

func newConversationCache(repo repository.ConversationRepository, redisClient *redis.Client, prefix string, ttl time.Duration, logger zerolog.Logger) *conversationCache {
	if ttl <= 0 {
		ttl = defaultConversationCacheTTL
	}
	return &conversationCache{
		repo:   repo,
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.With().Str("component", "chat_cache").Logger(),
	}
}

// Get returns the conversation or ErrChatNotFound.
func (c *conversationCache) Get(ctx context.Context, chatID string) (models.Conversation, error) {
	if cached, ok := c.read(ctx, chatID); ok {
		return cached, nil
	}

	chat, err := c.repo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, ErrChatNotFound
		}
		return models.Conversation{}, fmt.Errorf("load chat %s: %w", chatID, err)
	}

	c.write(ctx, chat)
	return chat, nil
}

func (c *conversationCache) key(chatID string) string {
	return fmt.Sprintf("%s:%s", c.prefix, chatID)
}

func (c *conversationCache) read(ctx context.Context, chatID string) (models.Conversation, bool) {
	if c.redis == nil || c.prefix == "" {
		return models.Conversation{}, false
	}

	result, err := c.redis.Get(ctx, c.key(chatID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("chat_id", chatID).Msg("failed to read cached chat")
		}
		return models.Conversation{}, false
	}

	var chat models.Conversation
	if err := json.Unmarshal([]byte(result), &chat); err != nil {
		c.logger.Warn().Err(err).Str("chat_id", chatID).Msg("failed to unmarshal cached chat")
		return models.Conversation{}, false
	}
	return chat, true
}

func (c *conversationCache) write(ctx context.Context, chat models.Conversation) {
	if c.redis == nil || c.prefix == "" {
		return
	}

	payload, err := json.Marshal(chat)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal chat for cache")
		return
	}

	if err := c.redis.Set(ctx, c.key(chat.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("chat_id", chat.ID).Msg("failed to cache chat")
	}
}
