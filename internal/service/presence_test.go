package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bounty-chat/internal/dto"
)

func TestPresenceTrackerOnlineNeedsTwoDistinctCallers(t *testing.T) {
	tracker := NewPresenceTracker(zerolog.Nop())
	user := newRecordingMember("user-1")
	admin := newRecordingMember("admin-1")

	require.False(t, tracker.Join("chat_1", user))
	require.False(t, tracker.IsOnline("chat_1"))
	require.False(t, user.lastOnline(t))

	require.True(t, tracker.Join("chat_1", admin))
	require.True(t, tracker.IsOnline("chat_1"))
	require.True(t, user.lastOnline(t))
	require.True(t, admin.lastOnline(t))

	require.False(t, tracker.Leave("chat_1", admin))
	require.False(t, tracker.IsOnline("chat_1"))
	require.False(t, user.lastOnline(t))
}

func TestPresenceTrackerKeepsCallerUntilLastConnectionLeaves(t *testing.T) {
	tracker := NewPresenceTracker(zerolog.Nop())
	laptop := newRecordingMember("user-1")
	phone := newRecordingMember("user-1")
	admin := newRecordingMember("admin-1")

	tracker.Join("chat_1", laptop)
	tracker.Join("chat_1", phone)
	require.False(t, tracker.IsOnline("chat_1"))
	require.Equal(t, []string{"user-1"}, tracker.Members("chat_1"))

	tracker.Join("chat_1", admin)
	tracker.Leave("chat_1", laptop)
	require.True(t, tracker.IsOnline("chat_1"))
	require.Equal(t, []string{"admin-1", "user-1"}, tracker.Members("chat_1"))

	tracker.Leave("chat_1", phone)
	require.False(t, tracker.IsOnline("chat_1"))
	require.Equal(t, []string{"admin-1"}, tracker.Members("chat_1"))
}

func TestPresenceTrackerRemovesEmptyRooms(t *testing.T) {
	tracker := NewPresenceTracker(zerolog.Nop())
	member := newRecordingMember("user-1")

	tracker.Join("chat_1", member)
	tracker.Join("chat_1", member)
	require.Equal(t, 1, tracker.RoomCount())

	tracker.Leave("chat_1", member)
	require.Equal(t, 0, tracker.RoomCount())
	require.Nil(t, tracker.Members("chat_1"))

	require.False(t, tracker.Leave("chat_1", member))
}

func TestPresenceTrackerBroadcastExceptSkipsCaller(t *testing.T) {
	tracker := NewPresenceTracker(zerolog.Nop())
	sender := newRecordingMember("user-1")
	senderOtherTab := newRecordingMember("user-1")
	admin := newRecordingMember("admin-1")
	tracker.Join("chat_1", sender)
	tracker.Join("chat_1", senderOtherTab)
	tracker.Join("chat_1", admin)

	event := dto.NewSuccessEvent(dto.EventTyping, "typing", dto.ChatTypingEvent{UserID: "user-1", IsTyping: true})
	require.Equal(t, 1, tracker.BroadcastExcept("chat_1", event, "user-1"))

	require.Empty(t, sender.received(dto.EventTyping))
	require.Empty(t, senderOtherTab.received(dto.EventTyping))
	require.Len(t, admin.received(dto.EventTyping), 1)
}

func TestPresenceTrackerBroadcastWithPresenceReportsCurrentState(t *testing.T) {
	tracker := NewPresenceTracker(zerolog.Nop())
	online, delivered := tracker.BroadcastWithPresence("chat_missing", func(bool) dto.ServerEvent {
		t.Fatal("builder must not run for an empty room")
		return dto.ServerEvent{}
	})
	require.False(t, online)
	require.Zero(t, delivered)

	user := newRecordingMember("user-1")
	admin := newRecordingMember("admin-1")
	tracker.Join("chat_1", user)
	tracker.Join("chat_1", admin)

	online, delivered = tracker.BroadcastWithPresence("chat_1", func(online bool) dto.ServerEvent {
		return messageEvent(dto.ChatMessageResponse{ID: 1, Content: "hello"}, online)
	})
	require.True(t, online)
	require.Equal(t, 2, delivered)
	require.Len(t, user.received(dto.EventMessage), 1)
}

func TestPresenceTrackerConcurrentJoinsAreNotLost(t *testing.T) {
	tracker := NewPresenceTracker(zerolog.Nop())

	const callers = 64
	members := make([]*recordingMember, callers)
	for i := range members {
		members[i] = newRecordingMember(fmt.Sprintf("user-%02d", i))
	}

	var wg sync.WaitGroup
	for _, member := range members {
		wg.Add(1)
		go func(member *recordingMember) {
			defer wg.Done()
			tracker.Join("chat_busy", member)
		}(member)
	}
	wg.Wait()
	require.Len(t, tracker.Members("chat_busy"), callers)

	for _, member := range members {
		wg.Add(1)
		go func(member *recordingMember) {
			defer wg.Done()
			tracker.Leave("chat_busy", member)
		}(member)
	}
	wg.Wait()
	require.Equal(t, 0, tracker.RoomCount())
}
