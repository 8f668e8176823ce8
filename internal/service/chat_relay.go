package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/dto"
)

const (
	relayKindMessage = "message"
	relayKindTyping  = "typing"
)

// relayEvent is what one node publishes so the others can replay it into their local rooms.
type relayEvent struct {
	Source  string                   `json:"source"`
	Kind    string                   `json:"kind"`
	RoomID  string                   `json:"room_id"`
	Message *dto.ChatMessageResponse `json:"message,omitempty"`
	Typing  *dto.ChatTypingEvent     `json:"typing,omitempty"`
	SentAt  time.Time                `json:"sent_at"`
}

const (
	relayTransportNone  = "none"
	relayTransportNATS  = "nats"
	relayTransportRedis = "redis"
)

// chatRelay fans room events out to other server instances over one transport:
// NATS when it is configured, Redis pub/sub otherwise.
type chatRelay struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

func (r *chatRelay) transport() string {
	switch {
	case r.nats != nil && r.natsSubject != "":
		return relayTransportNATS
	case r.redis != nil && r.redisChannel != "":
		return relayTransportRedis
	default:
		return relayTransportNone
	}
}

func (r *chatRelay) publish(ctx context.Context, event relayEvent) error {
	transport := r.transport()
	if transport == relayTransportNone {
		return nil
	}

	event.Source = r.nodeID
	event.SentAt = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if transport == relayTransportNATS {
		return r.nats.Publish(r.natsSubject, payload)
	}
	return r.redis.Publish(ctx, r.redisChannel, payload).Err()
}

// start launches the subscribers. handle is only called for events published by other nodes.
func (r *chatRelay) start(ctx context.Context, handle func(relayEvent)) {
	dispatch := func(data []byte) {
		var event relayEvent
		if err := json.Unmarshal(data, &event); err != nil {
			r.logger.Warn().Err(err).Msg("invalid chat relay event")
			return
		}
		if event.Source == r.nodeID {
			return
		}
		handle(event)
	}

	transport := r.transport()
	switch transport {
	case relayTransportNATS:
		r.consumeNATS(ctx, dispatch)
	case relayTransportRedis:
		go r.consumeRedis(ctx, dispatch)
	default:
		return
	}
	r.logger.Info().Str("transport", transport).Str("node_id", r.nodeID).Msg("chat relay started")
}

func (r *chatRelay) consumeRedis(ctx context.Context, dispatch func([]byte)) {
	pubsub := r.redis.Subscribe(ctx, r.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			r.logger.Error().Err(err).Msg("chat redis subscription closed")
			return
		}
		dispatch([]byte(msg.Payload))
	}
}

// consumeNATS subscribes without a queue group: every node must see every event to reach its own rooms.
func (r *chatRelay) consumeNATS(ctx context.Context, dispatch func([]byte)) {
	sub, err := r.nats.Subscribe(r.natsSubject, func(msg *nats.Msg) {
		dispatch(msg.Data)
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to subscribe to nats chat subject")
		return
	}
	if err := r.nats.Flush(); err != nil {
		r.logger.Warn().Err(err).Msg("failed to flush chat nats subscription")
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to drain chat nats subscription")
		}
	}()
}
