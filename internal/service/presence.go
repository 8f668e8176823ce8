package service

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bounty-chat/internal/dto"
	"github.com/noah-isme/bounty-chat/internal/observability"
)

// RoomMember is a live connection that can sit in a room.
type RoomMember interface {
	CallerID() string
	// Deliver enqueues an event without blocking. It reports false when the event was dropped.
	Deliver(event dto.ServerEvent) bool
}

// PresenceTracker owns the room -> members table. It is the only component allowed to mutate it.
// A room is "online" when more than one distinct caller is connected to it.
type PresenceTracker struct {
	mu     sync.RWMutex
	rooms  map[string]*presenceRoom
	logger zerolog.Logger
}

type presenceRoom struct {
	callers map[string]int
	members map[RoomMember]struct{}
}

// NewPresenceTracker creates an empty in-memory presence table.
func NewPresenceTracker(logger zerolog.Logger) *PresenceTracker {
	return &PresenceTracker{
		rooms:  make(map[string]*presenceRoom),
		logger: logger.With().Str("component", "presence").Logger(),
	}
}

// Join adds the member to the room and broadcasts the recomputed presence to everyone in it.
func (p *PresenceTracker) Join(roomID string, member RoomMember) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	room, ok := p.rooms[roomID]
	if !ok {
		room = &presenceRoom{
			callers: make(map[string]int),
			members: make(map[RoomMember]struct{}),
		}
		p.rooms[roomID] = room
		observability.ChatRoomsActive().Set(float64(len(p.rooms)))
	}

	if _, exists := room.members[member]; !exists {
		room.members[member] = struct{}{}
		room.callers[member.CallerID()]++
	}

	online := room.online()
	p.deliverLocked(roomID, room, onlineStatusEvent(online), "")
	p.logger.Debug().Str("room_id", roomID).Str("user_id", member.CallerID()).Bool("online", online).Msg("member joined room")
	return online
}

// Leave removes the member. Empty rooms are dropped, otherwise the remaining members get the new presence.
func (p *PresenceTracker) Leave(roomID string, member RoomMember) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	room, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	if _, exists := room.members[member]; !exists {
		return room.online()
	}

	delete(room.members, member)
	callerID := member.CallerID()
	room.callers[callerID]--
	if room.callers[callerID] <= 0 {
		delete(room.callers, callerID)
	}

	if len(room.members) == 0 {
		delete(p.rooms, roomID)
		observability.ChatRoomsActive().Set(float64(len(p.rooms)))
		p.logger.Debug().Str("room_id", roomID).Msg("room emptied")
		return false
	}

	online := room.online()
	p.deliverLocked(roomID, room, onlineStatusEvent(online), "")
	p.logger.Debug().Str("room_id", roomID).Str("user_id", callerID).Bool("online", online).Msg("member left room")
	return online
}

// IsOnline reports whether more than one distinct caller is connected to the room.
func (p *PresenceTracker) IsOnline(roomID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	room, ok := p.rooms[roomID]
	if !ok {
		return false
	}
	return room.online()
}

// Members returns the distinct caller ids in the room, sorted.
func (p *PresenceTracker) Members(roomID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	room, ok := p.rooms[roomID]
	if !ok {
		return nil
	}
	callers := make([]string, 0, len(room.callers))
	for caller := range room.callers {
		callers = append(callers, caller)
	}
	sort.Strings(callers)
	return callers
}

// RoomCount returns how many rooms currently hold members.
func (p *PresenceTracker) RoomCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}

// BroadcastWithPresence builds the event from the current presence and fans it out to every member.
// Presence and delivery happen under one read lock, so members see a consistent online flag.
func (p *PresenceTracker) BroadcastWithPresence(roomID string, build func(online bool) dto.ServerEvent) (bool, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	room, ok := p.rooms[roomID]
	if !ok {
		return false, 0
	}
	online := room.online()
	return online, p.deliverLocked(roomID, room, build(online), "")
}

// BroadcastExcept fans out the event to every member whose caller differs from exceptCaller.
func (p *PresenceTracker) BroadcastExcept(roomID string, event dto.ServerEvent, exceptCaller string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	room, ok := p.rooms[roomID]
	if !ok {
		return 0
	}
	return p.deliverLocked(roomID, room, event, exceptCaller)
}

func (p *PresenceTracker) deliverLocked(roomID string, room *presenceRoom, event dto.ServerEvent, exceptCaller string) int {
	delivered := 0
	for member := range room.members {
		if exceptCaller != "" && member.CallerID() == exceptCaller {
			continue
		}
		if member.Deliver(event) {
			delivered++
			continue
		}
		p.logger.Warn().Str("room_id", roomID).Str("user_id", member.CallerID()).Str("event", event.Event).Msg("dropping chat event for slow client")
	}
	return delivered
}

func (r *presenceRoom) online() bool {
	return len(r.callers) > 1
}

func onlineStatusEvent(online bool) dto.ServerEvent {
	return dto.NewSuccessEvent(dto.EventOnlineStatus, "presence updated", dto.OnlineStatusEvent{Online: online})
}
