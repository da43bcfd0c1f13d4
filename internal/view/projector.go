// Package view derives what a view renders from the entity store. Every
// method is a pure read; the UI layer never mutates state through here. All
// mutation flows back through a REST call and the reconciler.
package view

import (
	"sort"

	"github.com/moimapp/moim/internal/entity"
	"github.com/moimapp/moim/internal/store"
)

// Projector exposes read-only derivations over the store.
type Projector struct {
	store *store.Store
}

// New creates a projector over s.
func New(s *store.Store) *Projector {
	return &Projector{store: s}
}

// UnreadBadge returns the unread notification count for the header badge.
func (p *Projector) UnreadBadge() int {
	n := 0
	for _, notif := range p.store.Notifications() {
		if !notif.Read {
			n++
		}
	}
	return n
}

// UnreadMessageTotal returns the unread message count summed over all rooms.
func (p *Projector) UnreadMessageTotal() int {
	n := 0
	for _, r := range p.store.Rooms() {
		n += r.UnreadCount
	}
	return n
}

// RoomList returns room summaries sorted by last message time, newest first.
func (p *Projector) RoomList() []entity.ChatRoom {
	rooms := p.store.Rooms()
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].LastMessageAt.After(rooms[j].LastMessageAt)
	})
	return rooms
}

// Transcript returns the open room's messages in arrival order, with
// completely deleted entries already absent and sender-deleted ones flagged.
func (p *Projector) Transcript(roomID int64) []entity.ChatMessage {
	return p.store.Messages(roomID)
}

// FriendStatusFor returns the relationship with a user, NONE when no edge
// exists.
func (p *Projector) FriendStatusFor(userID string) entity.FriendStatus {
	if e, ok := p.store.Edge(userID); ok {
		return e.Status
	}
	return entity.FriendNone
}

// Friends returns all FRIEND edges.
func (p *Projector) Friends() []entity.FriendEdge {
	return p.edgesWith(entity.FriendFriend)
}

// PendingRequests returns all RECEIVED edges, requests awaiting the user.
func (p *Projector) PendingRequests() []entity.FriendEdge {
	return p.edgesWith(entity.FriendReceived)
}

// SentRequests returns all SENT edges, requests awaiting the counterpart.
func (p *Projector) SentRequests() []entity.FriendEdge {
	return p.edgesWith(entity.FriendSent)
}

func (p *Projector) edgesWith(status entity.FriendStatus) []entity.FriendEdge {
	var out []entity.FriendEdge
	for _, e := range p.store.Edges() {
		if e.Status == status {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CounterpartID < out[j].CounterpartID
	})
	return out
}

// IsOnline reports whether a user is in the presence set.
func (p *Projector) IsOnline(userID string) bool {
	return p.store.Online(userID)
}

// OnlineNow returns the current presence set membership.
func (p *Projector) OnlineNow() []string {
	ids := p.store.OnlineList()
	sort.Strings(ids)
	return ids
}

// NotificationFeed returns the notification feed, most recent first.
func (p *Projector) NotificationFeed() []entity.Notification {
	return p.store.Notifications()
}
