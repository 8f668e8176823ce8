package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/middleware"
	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/observability"
)

const writeWait = 10 * time.Second

// chatConn is the subset of the websocket connection the chat client drives.
type chatConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// chatClient is one authenticated connection. The caller is fixed at handshake and never mutated.
type chatClient struct {
	id      string
	conn    chatConn
	caller  models.Caller
	service *chatService
	ctx     context.Context
	logger  zerolog.Logger

	send       chan dto.ServerEvent
	closed     chan struct{}
	writerDone chan struct{}
	once       sync.Once

	// mu guards rooms and disconnected. Presence calls that depend on them run while it is held.
	mu           sync.Mutex
	rooms        map[string]string
	disconnected bool
}

// serve runs the connection until the transport closes. Every room the client joined is left on exit.
func (s *chatService) serve(conn chatConn, opts ChatConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	correlation := opts.CorrelationID
	if correlation == "" {
		correlation = middleware.CorrelationIDFromContext(baseCtx)
	}

	client := &chatClient{
		id:         uuid.NewString(),
		conn:       conn,
		caller:     opts.Caller,
		service:    s,
		ctx:        baseCtx,
		send:       make(chan dto.ServerEvent, s.sendBuffer),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
		rooms:      make(map[string]string),
	}
	client.logger = s.logger.With().
		Str("connection_id", client.id).
		Str("user_id", opts.Caller.UserID).
		Str("role", string(opts.Caller.Role)).
		Str("correlation_id", correlation).
		Logger()

	observability.ChatConnectionsTotal().Inc()
	observability.ChatConnectionsActive().Inc()
	defer observability.ChatConnectionsActive().Dec()

	client.logger.Debug().Msg("chat connection authenticated")

	go client.writer()
	client.reader()
	<-client.writerDone
}

func (c *chatClient) CallerID() string {
	return c.caller.UserID
}

func (c *chatClient) Deliver(event dto.ServerEvent) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *chatClient) reader() {
	defer c.close()

	readTimeout := 2 * c.service.pingInterval
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Debug().Err(err).Msg("chat read loop ended")
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var frame dto.ClientEvent
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.fail("", ErrInvalidPayload)
			continue
		}
		c.dispatch(frame)
	}
}

func (c *chatClient) writer() {
	defer close(c.writerDone)
	defer c.close()

	ticker := time.NewTicker(c.service.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("chat write loop terminated")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("chat ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// dispatch handles one inbound event. Failures are reported to this connection only.
func (c *chatClient) dispatch(frame dto.ClientEvent) {
	name := frame.Name()

	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error().Str("event", name).Interface("panic", recovered).Msg("chat event handler panicked")
			c.fail(name, fmt.Errorf("panic: %v", recovered))
		}
	}()

	var err error
	switch name {
	case dto.EventJoin:
		err = c.handleJoin(frame.Data)
	case dto.EventHistory:
		err = c.handleHistory(frame.Data)
	case dto.EventMessage:
		err = c.handleMessage(frame.Data)
	case dto.EventTyping:
		err = c.handleTyping(frame.Data)
	case dto.EventLeave:
		err = c.handleLeave(frame.Data)
	default:
		err = ErrUnknownEvent
	}

	if err != nil {
		c.fail(name, err)
	}
}

func (c *chatClient) handleJoin(data json.RawMessage) error {
	var payload dto.ChatJoinPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}
	if err := c.service.validator.Struct(payload); err != nil {
		return ErrInvalidPayload
	}

	chat, err := c.service.Join(c.ctx, c.caller, NewJoinRequest(payload))
	if err != nil {
		return err
	}
	roomID := chat.RoomID()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil
	}

	c.Deliver(dto.NewSuccessEvent(dto.EventJoin, "joined chat", dto.ChatJoinResponse{ChatID: chat.ID, RoomID: roomID}))
	c.rooms[roomID] = chat.ID
	c.service.presence.Join(roomID, c)
	c.logger.Debug().Str("chat_id", chat.ID).Str("room_id", roomID).Msg("joined chat room")
	return nil
}

func (c *chatClient) handleHistory(data json.RawMessage) error {
	var payload dto.ChatHistoryPayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}
	chatID := strings.TrimSpace(payload.ChatID)
	if chatID == "" {
		return ErrMissingChatID
	}
	if !c.memberOf(chatID) {
		return ErrForbidden
	}

	history, err := c.service.History(c.ctx, chatID)
	if err != nil {
		return err
	}
	c.Deliver(dto.NewSuccessEvent(dto.EventHistory, "chat history", history))
	return nil
}

func (c *chatClient) handleMessage(data json.RawMessage) error {
	var payload dto.ChatMessagePayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}
	payload.ChatID = strings.TrimSpace(payload.ChatID)
	if payload.ChatID == "" {
		return ErrMissingChatID
	}
	if !c.memberOf(payload.ChatID) {
		return ErrForbidden
	}

	_, err := c.service.Send(c.ctx, c.caller, payload)
	return err
}

func (c *chatClient) handleTyping(data json.RawMessage) error {
	var payload dto.ChatTypingPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil
	}
	payload.ChatID = strings.TrimSpace(payload.ChatID)
	if payload.ChatID == "" || !c.memberOf(payload.ChatID) {
		return nil
	}

	c.service.NotifyTyping(c.ctx, c.caller, payload)
	return nil
}

func (c *chatClient) handleLeave(data json.RawMessage) error {
	var payload dto.ChatLeavePayload
	if err := decodePayload(data, &payload); err != nil {
		return err
	}

	roomID := strings.TrimSpace(payload.RoomID)
	if roomID == "" {
		if chatID := strings.TrimSpace(payload.ChatID); chatID != "" {
			roomID = models.RoomIDForChat(chatID)
		}
	}
	if roomID == "" {
		return ErrMissingRoomID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil
	}

	if _, ok := c.rooms[roomID]; ok {
		delete(c.rooms, roomID)
		c.service.presence.Leave(roomID, c)
		c.logger.Debug().Str("room_id", roomID).Msg("left chat room")
	}
	c.Deliver(dto.NewSuccessEvent(dto.EventLeave, "left chat", dto.ChatLeaveResponse{RoomID: roomID}))
	return nil
}

func (c *chatClient) memberOf(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[models.RoomIDForChat(chatID)]
	return ok
}

func (c *chatClient) fail(event string, err error) {
	chatErr := ClassifyError(err)
	if event == "" {
		event = "unknown"
	}
	observability.ChatEventErrors().WithLabelValues(event, string(chatErr.Kind)).Inc()

	logEvent := c.logger.Debug()
	if chatErr.Kind == ErrorKindInternal {
		logEvent = c.logger.Error()
	}
	logEvent.Err(err).Str("event", event).Str("code", chatErr.Code).Msg("chat event failed")

	c.Deliver(dto.NewErrorEvent(chatErr.Message))
}

// close moves the client to Disconnected and removes it from every room it joined.
func (c *chatClient) close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.disconnected = true
		close(c.closed)
		for roomID := range c.rooms {
			c.service.presence.Leave(roomID, c)
		}
		c.rooms = make(map[string]string)
		c.mu.Unlock()

		_ = c.conn.Close()
		c.logger.Debug().Msg("chat connection closed")
	})
}

func decodePayload(raw json.RawMessage, target interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return ErrInvalidPayload
	}
	return nil
}
