// Package recon is the merge engine between the backend and the entity
// store. Pushed events, poll results and the user's own mutation results all
// pass through the same Apply methods, so there is exactly one write path
// into the store regardless of where an observation came from.
package recon

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/bus"
	"github.com/moimapp/moim/internal/entity"
	"github.com/moimapp/moim/internal/store"
)

// NudgeFriends is published on the bus when a friend-typed notification
// arrives; the poll scheduler reacts by running the friend poll early.
const NudgeFriends = "poll.nudge.friends"

const previewLen = 100

// Reconciler applies incoming observations to the store. It is the store's
// single writer; all handlers run to completion one observation at a time.
type Reconciler struct {
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	mu       sync.Mutex
	openRoom int64 // 0 = no room open
	// seen holds the applied message ids per room. Closed rooms have no
	// transcript to dedupe against, so redelivery of a frame (reconnect,
	// resubscribe) would otherwise count the same message twice.
	seen map[int64]map[int64]struct{}
}

// New creates a reconciler writing to s.
func New(s *store.Store, b *bus.Bus, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: s, bus: b, logger: logger, seen: make(map[int64]map[int64]struct{})}
}

// markSeen records a message id and reports whether it was new.
func (r *Reconciler) markSeen(roomID, msgID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids, ok := r.seen[roomID]
	if !ok {
		ids = make(map[int64]struct{})
		r.seen[roomID] = ids
	}
	if _, dup := ids[msgID]; dup {
		return false
	}
	ids[msgID] = struct{}{}
	return true
}

// Start subscribes to inbound push events on the bus.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("push.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Reconciler) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case "push.chat.message", "push.group.message":
		msg, ok := evt.Payload.(entity.ChatMessage)
		if !ok {
			r.logger.Warn("dropping malformed push message", zap.String("kind", evt.Kind))
			return
		}
		r.ApplyMessage(msg)
	case "push.notification":
		n, ok := evt.Payload.(entity.Notification)
		if !ok {
			r.logger.Warn("dropping malformed push notification")
			return
		}
		r.ApplyNotification(n)
	}
}

// OpenRoom marks a room as the currently open one and installs its fetched
// transcript. Opening counts as the explicit mark-read outcome for the room:
// the backend marks the caller's messages read during the transcript fetch,
// so the local unread counter resets with it.
func (r *Reconciler) OpenRoom(roomID int64, seed []entity.ChatMessage) {
	r.mu.Lock()
	prev := r.openRoom
	r.openRoom = roomID
	r.mu.Unlock()

	if prev != 0 && prev != roomID {
		r.store.DropTranscript(prev)
	}
	r.store.HydrateRoom(roomID, seed)
	if room, ok := r.store.Room(roomID); ok && room.UnreadCount != 0 {
		room.UnreadCount = 0
		r.store.UpsertRoom(room)
	}
}

// CloseRoom releases the open room's transcript, keeping its summary.
func (r *Reconciler) CloseRoom() {
	r.mu.Lock()
	roomID := r.openRoom
	r.openRoom = 0
	r.mu.Unlock()

	if roomID != 0 {
		r.store.DropTranscript(roomID)
	}
}

// OpenRoomID returns the currently open room id, 0 when none.
func (r *Reconciler) OpenRoomID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openRoom
}

// ApplyMessage merges one message observation, whatever its origin.
// Duplicates by id are discarded. A message for the open room lands in the
// transcript and counts as seen; one for a closed room bumps the room's
// unread counter and refreshes its preview. A completely deleted message is
// removed instead.
func (r *Reconciler) ApplyMessage(msg entity.ChatMessage) {
	if msg.CompletelyDeleted {
		r.store.RemoveMessage(msg.RoomID, msg.ID)
		return
	}

	r.mu.Lock()
	open := r.openRoom == msg.RoomID
	r.mu.Unlock()

	// The open mark and the transcript install are separate steps, so a
	// message can arrive for an open room whose transcript is not in yet.
	// It takes the closed-room path then; hydration dedupes it by id.
	if open && r.store.Hydrated(msg.RoomID) {
		if !r.store.UpsertMessage(msg) {
			// Duplicate or flag-only merge; the summary was already current.
			return
		}
		r.markSeen(msg.RoomID, msg.ID)
		r.bumpRoom(msg, false)
		return
	}

	// Closed room: summary only, transcript hydrates on next open.
	if !r.markSeen(msg.RoomID, msg.ID) {
		return
	}
	r.bumpRoom(msg, true)
}

func (r *Reconciler) bumpRoom(msg entity.ChatMessage, countUnread bool) {
	room, ok := r.store.Room(msg.RoomID)
	if !ok {
		room = entity.ChatRoom{
			ID:   msg.RoomID,
			Kind: msg.RoomKind,
			Name: msg.SenderName,
		}
	}
	room.LastMessage = truncate(msg.Content, previewLen)
	if msg.SentAt.After(room.LastMessageAt) {
		room.LastMessageAt = msg.SentAt
	}
	if countUnread {
		room.UnreadCount++
	}
	r.store.UpsertRoom(room)
}

// ApplyNotification merges one notification observation. Friend-typed
// notifications nudge the friend poll so sidebar lists refresh immediately
// instead of waiting out the interval.
func (r *Reconciler) ApplyNotification(n entity.Notification) {
	inserted := r.store.UpsertNotification(n)
	if !inserted {
		return
	}
	switch n.Type {
	case entity.NotifFriendRequest, entity.NotifFriendAccepted:
		r.bus.PublishKind(NudgeFriends, n.Type)
	}
}

// MarkNotificationRead records the read outcome of a mark-read mutation.
func (r *Reconciler) MarkNotificationRead(id int64) {
	r.store.MarkNotificationRead(id)
}

// MarkAllNotificationsRead records the read-all outcome.
func (r *Reconciler) MarkAllNotificationsRead() {
	r.store.MarkAllNotificationsRead()
}

// ApplyEdge merges one friend edge observation from an event or mutation
// result. Identity is the counterpart id, not the friendship id: the same
// relationship can arrive with a different friendship id after a
// delete-and-recreate race, and then the most recent observation wins. For
// an unchanged friendship id the transition table is enforced; a violating
// update is dropped as an inconsistency and left to the next poll.
func (r *Reconciler) ApplyEdge(e entity.FriendEdge) {
	if e.Status == entity.FriendNone {
		r.store.RemoveEdge(e.CounterpartID)
		return
	}

	cur, ok := r.store.Edge(e.CounterpartID)
	if ok && cur.FriendshipID == e.FriendshipID {
		if cur.Status == e.Status {
			return
		}
		if !entity.CanTransition(cur.Status, e.Status) {
			r.logger.Warn("dropping inconsistent friend transition",
				zap.String("counterpart", e.CounterpartID),
				zap.String("from", string(cur.Status)),
				zap.String("to", string(e.Status)),
				zap.Int64("friendship_id", e.FriendshipID))
			return
		}
	}
	r.store.PutEdge(e)
}

// ReplaceEdges applies an authoritative friend poll result: the fetched set
// entirely supersedes the local one.
func (r *Reconciler) ReplaceEdges(edges []entity.FriendEdge) {
	r.store.ReplaceEdges(edges)
}

// ReplaceRooms applies an authoritative room list fetch for one room kind.
func (r *Reconciler) ReplaceRooms(kind entity.RoomKind, rooms []entity.ChatRoom) {
	r.store.ReplaceRooms(kind, rooms)
}

// ReplaceNotifications applies an authoritative notification poll result.
func (r *Reconciler) ReplaceNotifications(ns []entity.Notification) {
	r.store.ReplaceNotifications(ns)
}

// ReplacePresence applies an authoritative presence poll result.
func (r *Reconciler) ReplacePresence(userIDs []string) {
	r.store.ReplacePresence(userIDs)
}

// truncate cuts s to at most maxLen bytes without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
