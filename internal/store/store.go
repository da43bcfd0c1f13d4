// Package store holds the client's in-memory entity collections: chat room
// summaries, the open room's transcript, friend edges, notifications and the
// online presence set.
//
// The store is the single shared mutable resource of the client. It is only
// ever written by the reconciler; views and transports read it through the
// projector and react to the "store." bus events it publishes on mutation.
// No network or timer access happens at this layer.
package store

import (
	"sync"

	"github.com/moimapp/moim/internal/bus"
	"github.com/moimapp/moim/internal/entity"
)

// Bus event kinds published on store mutation.
const (
	KindMessageUpserted       = "store.message.upserted"
	KindMessageRemoved        = "store.message.removed"
	KindRoomUpdated           = "store.room.updated"
	KindRoomHydrated          = "store.room.hydrated"
	KindFriendChanged         = "store.friend.changed"
	KindNotificationUpserted  = "store.notification.upserted"
	KindNotificationsReplaced = "store.notification.replaced"
	KindPresenceReplaced      = "store.presence.replaced"
)

// maxNotifications mirrors the backend's 50-entry notification feed.
const maxNotifications = 50

// MessageRef identifies a message within a room, used as event payload.
type MessageRef struct {
	RoomID    int64
	MessageID int64
}

// FriendChange is the payload of a friend.changed event. Views caching an
// "is this user a friend" read invalidate by CounterpartID.
type FriendChange struct {
	CounterpartID string
	From          entity.FriendStatus
	To            entity.FriendStatus
}

// Store is the in-memory entity store.
type Store struct {
	mu  sync.RWMutex
	bus *bus.Bus

	rooms       map[int64]entity.ChatRoom
	transcripts map[int64][]entity.ChatMessage
	edges       map[string]entity.FriendEdge
	notifs      map[int64]entity.Notification
	notifOrder  []int64 // most recent first
	online      map[string]struct{}
}

// New creates an empty store publishing change events on b.
func New(b *bus.Bus) *Store {
	return &Store{
		bus:         b,
		rooms:       make(map[int64]entity.ChatRoom),
		transcripts: make(map[int64][]entity.ChatMessage),
		edges:       make(map[string]entity.FriendEdge),
		notifs:      make(map[int64]entity.Notification),
		online:      make(map[string]struct{}),
	}
}

func (s *Store) publish(kind string, payload any) {
	if s.bus != nil {
		s.bus.PublishKind(kind, payload)
	}
}

// --- rooms and transcripts ---

// UpsertRoom inserts or replaces a room summary.
func (s *Store) UpsertRoom(r entity.ChatRoom) {
	s.mu.Lock()
	s.rooms[r.ID] = r
	s.mu.Unlock()
	s.publish(KindRoomUpdated, r.ID)
}

// ReplaceRooms replaces all room summaries of the given kind, keeping the
// other kind and any hydrated transcripts untouched.
func (s *Store) ReplaceRooms(kind entity.RoomKind, rooms []entity.ChatRoom) {
	s.mu.Lock()
	for id, r := range s.rooms {
		if r.Kind == kind {
			delete(s.rooms, id)
		}
	}
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	s.mu.Unlock()
	s.publish(KindRoomUpdated, int64(0))
}

// Room returns a room summary by id.
func (s *Store) Room(id int64) (entity.ChatRoom, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Rooms returns a snapshot of all room summaries.
func (s *Store) Rooms() []entity.ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.ChatRoom, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// HydrateRoom installs the transcript for a room from a full fetch,
// deduplicating by message id (insert-if-absent on every write path).
func (s *Store) HydrateRoom(roomID int64, msgs []entity.ChatMessage) {
	s.mu.Lock()
	seen := make(map[int64]struct{}, len(msgs))
	transcript := make([]entity.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		transcript = append(transcript, m)
	}
	s.transcripts[roomID] = transcript
	s.mu.Unlock()
	s.publish(KindRoomHydrated, roomID)
}

// DropTranscript releases a room's transcript, leaving the summary in place.
func (s *Store) DropTranscript(roomID int64) {
	s.mu.Lock()
	delete(s.transcripts, roomID)
	s.mu.Unlock()
}

// Hydrated reports whether a room's transcript is currently held.
func (s *Store) Hydrated(roomID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.transcripts[roomID]
	return ok
}

// UpsertMessage appends a message to its room's transcript, or merges the
// read/delete flags into the existing entry. Flags never regress: a read
// message stays read, a deleted message stays deleted. Returns true when the
// message was newly inserted, false for a duplicate id.
//
// Rooms without a hydrated transcript are left untouched; summary counters
// for closed rooms are the reconciler's concern.
func (s *Store) UpsertMessage(m entity.ChatMessage) bool {
	s.mu.Lock()
	transcript, ok := s.transcripts[m.RoomID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	for i := range transcript {
		if transcript[i].ID != m.ID {
			continue
		}
		changed := false
		if m.Read && !transcript[i].Read {
			transcript[i].Read = true
			changed = true
		}
		if m.DeletedBySender && !transcript[i].DeletedBySender {
			transcript[i].DeletedBySender = true
			changed = true
		}
		s.mu.Unlock()
		if changed {
			s.publish(KindMessageUpserted, MessageRef{RoomID: m.RoomID, MessageID: m.ID})
		}
		return false
	}
	s.transcripts[m.RoomID] = append(transcript, m)
	s.mu.Unlock()
	s.publish(KindMessageUpserted, MessageRef{RoomID: m.RoomID, MessageID: m.ID})
	return true
}

// RemoveMessage deletes a message from a hydrated transcript.
func (s *Store) RemoveMessage(roomID, msgID int64) {
	s.mu.Lock()
	transcript, ok := s.transcripts[roomID]
	if !ok {
		s.mu.Unlock()
		return
	}
	for i := range transcript {
		if transcript[i].ID == msgID {
			s.transcripts[roomID] = append(transcript[:i], transcript[i+1:]...)
			s.mu.Unlock()
			s.publish(KindMessageRemoved, MessageRef{RoomID: roomID, MessageID: msgID})
			return
		}
	}
	s.mu.Unlock()
}

// Message returns a message from a hydrated transcript by id.
func (s *Store) Message(roomID, msgID int64) (entity.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.transcripts[roomID] {
		if m.ID == msgID {
			return m, true
		}
	}
	return entity.ChatMessage{}, false
}

// Messages returns a copy of a room's transcript in arrival order.
func (s *Store) Messages(roomID int64) []entity.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transcript := s.transcripts[roomID]
	out := make([]entity.ChatMessage, len(transcript))
	copy(out, transcript)
	return out
}

// --- friend edges ---

// PutEdge inserts or replaces the edge for its counterpart and publishes the
// status change. Status and friendship id always move together.
func (s *Store) PutEdge(e entity.FriendEdge) {
	s.mu.Lock()
	prev, had := s.edges[e.CounterpartID]
	s.edges[e.CounterpartID] = e
	s.mu.Unlock()

	from := entity.FriendNone
	if had {
		from = prev.Status
	}
	if from != e.Status || !had || prev.FriendshipID != e.FriendshipID {
		s.publish(KindFriendChanged, FriendChange{CounterpartID: e.CounterpartID, From: from, To: e.Status})
	}
}

// RemoveEdge deletes the edge for a counterpart; NONE edges are never stored.
func (s *Store) RemoveEdge(counterpartID string) {
	s.mu.Lock()
	prev, had := s.edges[counterpartID]
	delete(s.edges, counterpartID)
	s.mu.Unlock()
	if had {
		s.publish(KindFriendChanged, FriendChange{CounterpartID: counterpartID, From: prev.Status, To: entity.FriendNone})
	}
}

// Edge returns the edge for a counterpart, if one exists.
func (s *Store) Edge(counterpartID string) (entity.FriendEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[counterpartID]
	return e, ok
}

// Edges returns a snapshot of all friend edges.
func (s *Store) Edges() []entity.FriendEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.FriendEdge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}

// ReplaceEdges replaces the whole edge set with a poll result and publishes
// one friend.changed event per counterpart whose status actually differs.
func (s *Store) ReplaceEdges(edges []entity.FriendEdge) {
	next := make(map[string]entity.FriendEdge, len(edges))
	for _, e := range edges {
		next[e.CounterpartID] = e
	}

	s.mu.Lock()
	var changes []FriendChange
	for id, prev := range s.edges {
		if _, still := next[id]; !still {
			changes = append(changes, FriendChange{CounterpartID: id, From: prev.Status, To: entity.FriendNone})
		}
	}
	for id, e := range next {
		prev, had := s.edges[id]
		if !had {
			changes = append(changes, FriendChange{CounterpartID: id, From: entity.FriendNone, To: e.Status})
		} else if prev.Status != e.Status {
			changes = append(changes, FriendChange{CounterpartID: id, From: prev.Status, To: e.Status})
		}
	}
	s.edges = next
	s.mu.Unlock()

	for _, c := range changes {
		s.publish(KindFriendChanged, c)
	}
}

// --- notifications ---

// UpsertNotification inserts a notification at the head of the feed, or
// merges the read flag into the existing entry (read never regresses to
// unread). The feed is capped to the backend's feed length. Returns true
// when newly inserted.
func (s *Store) UpsertNotification(n entity.Notification) bool {
	s.mu.Lock()
	if existing, ok := s.notifs[n.ID]; ok {
		if n.Read && !existing.Read {
			existing.Read = true
			s.notifs[n.ID] = existing
			s.mu.Unlock()
			s.publish(KindNotificationUpserted, n.ID)
			return false
		}
		s.mu.Unlock()
		return false
	}
	s.notifs[n.ID] = n
	s.notifOrder = append([]int64{n.ID}, s.notifOrder...)
	if len(s.notifOrder) > maxNotifications {
		for _, id := range s.notifOrder[maxNotifications:] {
			delete(s.notifs, id)
		}
		s.notifOrder = s.notifOrder[:maxNotifications]
	}
	s.mu.Unlock()
	s.publish(KindNotificationUpserted, n.ID)
	return true
}

// MarkNotificationRead sets the read flag on an existing notification.
// Unknown ids are ignored; a mark-read outcome never creates entries.
func (s *Store) MarkNotificationRead(id int64) {
	s.mu.Lock()
	n, ok := s.notifs[id]
	if !ok || n.Read {
		s.mu.Unlock()
		return
	}
	n.Read = true
	s.notifs[id] = n
	s.mu.Unlock()
	s.publish(KindNotificationUpserted, id)
}

// MarkAllNotificationsRead sets the read flag on every notification.
func (s *Store) MarkAllNotificationsRead() {
	s.mu.Lock()
	for id, n := range s.notifs {
		n.Read = true
		s.notifs[id] = n
	}
	s.mu.Unlock()
	s.publish(KindNotificationsReplaced, nil)
}

// ReplaceNotifications replaces the feed with a poll result, most recent first.
func (s *Store) ReplaceNotifications(ns []entity.Notification) {
	s.mu.Lock()
	s.notifs = make(map[int64]entity.Notification, len(ns))
	s.notifOrder = s.notifOrder[:0]
	for _, n := range ns {
		if _, dup := s.notifs[n.ID]; dup {
			continue
		}
		s.notifs[n.ID] = n
		s.notifOrder = append(s.notifOrder, n.ID)
	}
	s.mu.Unlock()
	s.publish(KindNotificationsReplaced, nil)
}

// Notifications returns the feed, most recent first.
func (s *Store) Notifications() []entity.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Notification, 0, len(s.notifOrder))
	for _, id := range s.notifOrder {
		out = append(out, s.notifs[id])
	}
	return out
}

// --- presence ---

// ReplacePresence replaces the online set with a poll result.
func (s *Store) ReplacePresence(userIDs []string) {
	next := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		next[id] = struct{}{}
	}
	s.mu.Lock()
	s.online = next
	s.mu.Unlock()
	s.publish(KindPresenceReplaced, len(next))
}

// Online reports whether a user is currently considered online.
func (s *Store) Online(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineList returns a snapshot of the online user ids.
func (s *Store) OnlineList() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	return out
}
