package service

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/bounty-chat/internal/database"
	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/models"
	"github.com/noah-isme/bounty-chat/internal/repository"
)

type chatFixture struct {
	db        *gorm.DB
	chats     repository.ConversationRepository
	messages  repository.MessageRepository
	reports   repository.ReportRepository
	companies repository.CompanyRepository
	presence  *PresenceTracker
	resolver  ConversationResolver
	service   *chatService
}

func newChatFixture(t *testing.T, opts ChatServiceOptions) *chatFixture {
	t.Helper()

	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	f := &chatFixture{
		db:        db,
		chats:     repository.NewConversationRepository(db),
		messages:  repository.NewMessageRepository(db),
		reports:   repository.NewReportRepository(db),
		companies: repository.NewCompanyRepository(db),
		presence:  NewPresenceTracker(zerolog.Nop()),
	}
	f.resolver = NewConversationResolver(f.chats, f.reports, f.companies, zerolog.Nop())
	f.service = NewChatService(f.resolver, f.chats, f.messages, f.presence, validator.New(), zerolog.Nop(), opts).(*chatService)
	return f
}

func (f *chatFixture) seedUser(t *testing.T, role models.Role) models.User {
	t.Helper()
	user := models.User{
		Email:     uuid.NewString() + "@example.com",
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *chatFixture) seedCompany(t *testing.T, manager models.User) models.Company {
	t.Helper()
	company := models.Company{Name: "Acme " + manager.ID[:8], ManagerID: manager.ID}
	require.NoError(t, f.db.Create(&company).Error)
	return company
}

func (f *chatFixture) seedReport(t *testing.T, author models.User, company models.Company) models.Report {
	t.Helper()
	bounty := models.Bounty{Title: "Bug bounty", CompanyID: company.ID}
	require.NoError(t, f.db.Create(&bounty).Error)
	report := models.Report{Title: "XSS in search", UserID: author.ID, BountyID: bounty.ID}
	require.NoError(t, f.db.Create(&report).Error)
	return report
}

func callerOf(user models.User) models.Caller {
	return models.Caller{UserID: user.ID, Role: user.Role}
}

// recordingMember is an in-memory room member that keeps every delivered event.
type recordingMember struct {
	callerID string

	mu     sync.Mutex
	events []dto.ServerEvent
}

func newRecordingMember(callerID string) *recordingMember {
	return &recordingMember{callerID: callerID}
}

func (m *recordingMember) CallerID() string {
	return m.callerID
}

func (m *recordingMember) Deliver(event dto.ServerEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return true
}

func (m *recordingMember) received(name string) []dto.ServerEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []dto.ServerEvent
	for _, event := range m.events {
		if event.Event == name {
			out = append(out, event)
		}
	}
	return out
}

func (m *recordingMember) lastOnline(t *testing.T) bool {
	t.Helper()
	events := m.received(dto.EventOnlineStatus)
	require.NotEmpty(t, events)
	status, ok := events[len(events)-1].Data.(dto.OnlineStatusEvent)
	require.True(t, ok)
	return status.Online
}

// wireEvent is an outbound frame as a client decodes it.
type wireEvent struct {
	Event   string          `json:"event"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// fakeConn stands in for a websocket connection.
type fakeConn struct {
	inbound  chan []byte
	outbound chan wireEvent
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan wireEvent, 256),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.inbound:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var event wireEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return err
	}
	c.outbound <- event
	return nil
}

func (c *fakeConn) WriteMessage(int, []byte) error    { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// testClient drives one fake connection served by the chat service.
type testClient struct {
	conn *fakeConn
	done chan struct{}
}

func (f *chatFixture) connect(t *testing.T, caller models.Caller) *testClient {
	t.Helper()
	client := &testClient{conn: newFakeConn(), done: make(chan struct{})}
	go func() {
		defer close(client.done)
		f.service.serve(client.conn, ChatConnectionOptions{Caller: caller})
	}()
	t.Cleanup(func() { client.disconnect(t) })
	return client
}

func (c *testClient) emit(t *testing.T, event string, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(map[string]json.RawMessage{"event": json.RawMessage(`"` + event + `"`), "data": payload})
	require.NoError(t, err)
	c.conn.inbound <- frame
}

func (c *testClient) emitRaw(raw string) {
	c.conn.inbound <- []byte(raw)
}

// waitFor returns the first frame matching name, discarding the frames before it.
func (c *testClient) waitFor(t *testing.T, name string) wireEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event := <-c.conn.outbound:
			if event.Event == name {
				return event
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", name)
			return wireEvent{}
		}
	}
}

// waitForOnline waits for an online.status frame carrying the wanted value.
func (c *testClient) waitForOnline(t *testing.T, want bool) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event := <-c.conn.outbound:
			if event.Event != dto.EventOnlineStatus {
				continue
			}
			var status dto.OnlineStatusEvent
			require.NoError(t, json.Unmarshal(event.Data, &status))
			if status.Online == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for online=%v", want)
		}
	}
}

func (c *testClient) join(t *testing.T, payload dto.ChatJoinPayload) dto.ChatJoinResponse {
	t.Helper()
	c.emit(t, "join", payload)
	event := c.waitFor(t, dto.EventJoin)
	require.Equal(t, dto.StatusSuccess, event.Status, event.Message)
	var ack dto.ChatJoinResponse
	require.NoError(t, json.Unmarshal(event.Data, &ack))
	return ack
}

func (c *testClient) disconnect(t *testing.T) {
	t.Helper()
	_ = c.conn.Close()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection did not shut down")
	}
}
