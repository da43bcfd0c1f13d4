package recon

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/moimapp/moim/internal/bus"
	"github.com/moimapp/moim/internal/entity"
	"github.com/moimapp/moim/internal/store"
)

func newTestReconciler() (*Reconciler, *store.Store, *bus.Bus) {
	b := bus.New()
	s := store.New(b)
	return New(s, b, nil), s, b
}

func TestIdempotentDelivery(t *testing.T) {
	r, s, _ := newTestReconciler()
	r.OpenRoom(1, nil)

	msg := entity.ChatMessage{ID: 501, RoomID: 1, Content: "hi", SentAt: time.Unix(1000, 0)}
	r.ApplyMessage(msg) // push
	r.ApplyMessage(msg) // same id again via a later fetch

	if got := len(s.Messages(1)); got != 1 {
		t.Fatalf("got %d messages, want exactly 1", got)
	}
	room, _ := s.Room(1)
	if room.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0 for open room", room.UnreadCount)
	}
}

// Room R has preview "hello" and unread 2; a push delivers message 501 while
// R is closed; a later open-with-fetch includes 501 again.
func TestClosedRoomPreviewAndUnread(t *testing.T) {
	r, s, _ := newTestReconciler()
	s.UpsertRoom(entity.ChatRoom{ID: 1, Kind: entity.RoomDirect, LastMessage: "hello", UnreadCount: 2})

	pushed := entity.ChatMessage{
		ID: 501, RoomID: 1, SenderID: "b", Content: "are you there?",
		SentAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	r.ApplyMessage(pushed)

	room, _ := s.Room(1)
	if room.LastMessage != "are you there?" {
		t.Errorf("preview = %q, want updated", room.LastMessage)
	}
	if room.UnreadCount != 3 {
		t.Errorf("unread = %d, want 3", room.UnreadCount)
	}

	// Fetch on open also contains 501: exactly one entry, unread reset.
	r.OpenRoom(1, []entity.ChatMessage{pushed})
	if got := len(s.Messages(1)); got != 1 {
		t.Errorf("got %d entries for id 501, want 1", got)
	}
	room, _ = s.Room(1)
	if room.UnreadCount != 0 {
		t.Errorf("unread after open = %d, want 0", room.UnreadCount)
	}
}

func TestUnreadAccountingAcrossOpenClose(t *testing.T) {
	r, s, _ := newTestReconciler()
	s.UpsertRoom(entity.ChatRoom{ID: 1, Kind: entity.RoomDirect})

	next := int64(0)
	recv := func() {
		next++
		r.ApplyMessage(entity.ChatMessage{ID: next, RoomID: 1, Content: "m", SentAt: time.Unix(next, 0)})
	}

	recv()                       // closed: 1
	recv()                       // closed: 2
	r.OpenRoom(1, s.Messages(1)) // resets
	recv()                       // open: stays 0
	r.CloseRoom()
	recv() // closed: 1

	room, _ := s.Room(1)
	if room.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", room.UnreadCount)
	}
	if room.UnreadCount < 0 {
		t.Error("unread went negative")
	}
}

func TestOpenRoomDropsPreviousTranscript(t *testing.T) {
	r, s, _ := newTestReconciler()
	r.OpenRoom(1, []entity.ChatMessage{{ID: 1, RoomID: 1}})
	r.OpenRoom(2, []entity.ChatMessage{{ID: 2, RoomID: 2}})

	if s.Hydrated(1) {
		t.Error("previous room transcript still hydrated")
	}
	if !s.Hydrated(2) {
		t.Error("new room transcript missing")
	}
	if r.OpenRoomID() != 2 {
		t.Errorf("open room = %d, want 2", r.OpenRoomID())
	}
}

func TestCompletelyDeletedMessageRemoved(t *testing.T) {
	r, s, _ := newTestReconciler()
	r.OpenRoom(1, []entity.ChatMessage{{ID: 5, RoomID: 1, Content: "bye"}})

	r.ApplyMessage(entity.ChatMessage{ID: 5, RoomID: 1, CompletelyDeleted: true})
	if got := len(s.Messages(1)); got != 0 {
		t.Errorf("got %d messages, want 0 after complete delete", got)
	}
}

// A FriendEdge in state FRIEND must reject a stale SENT claim under the same
// friendship id, but accept it under a new id (new relationship).
func TestFriendEdgeNoRegression(t *testing.T) {
	r, s, _ := newTestReconciler()
	r.ApplyEdge(entity.FriendEdge{FriendshipID: 77, CounterpartID: "b", Status: entity.FriendFriend})

	r.ApplyEdge(entity.FriendEdge{FriendshipID: 77, CounterpartID: "b", Status: entity.FriendSent})
	edge, _ := s.Edge("b")
	if edge.Status != entity.FriendFriend {
		t.Errorf("status = %s, want FRIEND kept against stale event", edge.Status)
	}

	// Different friendship id: the pair was unfriended and re-requested.
	r.ApplyEdge(entity.FriendEdge{FriendshipID: 78, CounterpartID: "b", Status: entity.FriendSent})
	edge, _ = s.Edge("b")
	if edge.Status != entity.FriendSent || edge.FriendshipID != 78 {
		t.Errorf("edge = %+v, want SENT under new id 78", edge)
	}
}

// B accepts a request: edge moves SENT->FRIEND with friendshipId retained,
// and a friend.changed event fires so views rendering "pending" update.
func TestFriendAcceptRetainsIDAndNotifiesViews(t *testing.T) {
	r, s, b := newTestReconciler()
	r.ApplyEdge(entity.FriendEdge{FriendshipID: 77, CounterpartID: "b", Status: entity.FriendSent})

	ch, unsub := b.Subscribe(store.KindFriendChanged, 10)
	defer unsub()

	r.ApplyEdge(entity.FriendEdge{FriendshipID: 77, CounterpartID: "b", Status: entity.FriendFriend})

	edge, _ := s.Edge("b")
	if edge.Status != entity.FriendFriend || edge.FriendshipID != 77 {
		t.Errorf("edge = %+v, want FRIEND with id 77 retained", edge)
	}

	select {
	case evt := <-ch:
		change := evt.Payload.(store.FriendChange)
		if change.CounterpartID != "b" || change.To != entity.FriendFriend {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for friend.changed event")
	}
}

func TestFriendEdgeNoneRemoves(t *testing.T) {
	r, s, _ := newTestReconciler()
	r.ApplyEdge(entity.FriendEdge{FriendshipID: 1, CounterpartID: "b", Status: entity.FriendSent})
	r.ApplyEdge(entity.FriendEdge{CounterpartID: "b", Status: entity.FriendNone})
	if _, ok := s.Edge("b"); ok {
		t.Error("NONE edge still stored")
	}
}

func TestFriendNotificationNudgesPoll(t *testing.T) {
	r, _, b := newTestReconciler()
	ch, unsub := b.Subscribe("poll.", 10)
	defer unsub()

	r.ApplyNotification(entity.Notification{ID: 1, Type: entity.NotifFriendRequest})

	select {
	case evt := <-ch:
		if evt.Kind != NudgeFriends {
			t.Errorf("kind = %q, want %q", evt.Kind, NudgeFriends)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for nudge")
	}

	// Duplicate delivery must not nudge again.
	r.ApplyNotification(entity.Notification{ID: 1, Type: entity.NotifFriendRequest})
	select {
	case evt := <-ch:
		t.Errorf("duplicate notification nudged again: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

// The reconciler processes push events from the bus; malformed payloads are
// dropped without crashing the loop.
func TestBusSubscription(t *testing.T) {
	r, s, b := newTestReconciler()
	r.OpenRoom(1, nil)
	r.Start(context.Background())
	defer r.Stop()

	b.PublishKind("push.chat.message", "not a message")
	b.PublishKind("push.chat.message", entity.ChatMessage{ID: 9, RoomID: 1, Content: "via bus"})

	deadline := time.After(time.Second)
	for {
		if msgs := s.Messages(1); len(msgs) == 1 && msgs[0].Content == "via bus" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("message not applied from bus, transcript = %v", s.Messages(1))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestClosedRoomRedeliveryCountsOnce(t *testing.T) {
	r, s, _ := newTestReconciler()
	s.UpsertRoom(entity.ChatRoom{ID: 7, Kind: entity.RoomDirect})

	msg := entity.ChatMessage{ID: 501, RoomID: 7, Content: "hello", SentAt: time.Unix(5, 0)}
	r.ApplyMessage(msg)
	r.ApplyMessage(msg)

	room, _ := s.Room(7)
	if room.UnreadCount != 1 {
		t.Errorf("unread = %d after redelivery of one message, want 1", room.UnreadCount)
	}

	// The id stays counted across an open/close cycle.
	r.OpenRoom(7, []entity.ChatMessage{msg})
	r.CloseRoom()
	r.ApplyMessage(msg)
	room, _ = s.Room(7)
	if room.UnreadCount != 0 {
		t.Errorf("unread = %d after redelivery of an already-read message, want 0", room.UnreadCount)
	}
}

func TestPreviewTruncatesOnRuneBoundary(t *testing.T) {
	r, s, _ := newTestReconciler()
	content := strings.Repeat("안녕", 40)
	r.ApplyMessage(entity.ChatMessage{ID: 1, RoomID: 2, Content: content, SentAt: time.Unix(1, 0)})

	room, _ := s.Room(2)
	if !utf8.ValidString(room.LastMessage) {
		t.Fatalf("preview is not valid UTF-8: %q", room.LastMessage)
	}
	if len(room.LastMessage) > previewLen {
		t.Errorf("preview is %d bytes, want at most %d", len(room.LastMessage), previewLen)
	}
	if !strings.HasPrefix(content, room.LastMessage) {
		t.Errorf("preview %q is not a prefix of the content", room.LastMessage)
	}
}

func TestOpenMarkWithoutTranscriptKeepsMessage(t *testing.T) {
	r, s, _ := newTestReconciler()
	s.UpsertRoom(entity.ChatRoom{ID: 9, Kind: entity.RoomDirect})

	// The open mark lands before the transcript install does.
	r.mu.Lock()
	r.openRoom = 9
	r.mu.Unlock()

	r.ApplyMessage(entity.ChatMessage{ID: 3, RoomID: 9, Content: "hi", SentAt: time.Unix(3, 0)})

	room, _ := s.Room(9)
	if room.LastMessage != "hi" {
		t.Errorf("preview = %q, want %q", room.LastMessage, "hi")
	}
	if room.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", room.UnreadCount)
	}

	// Install then dedupes by id, and opening resets the counter.
	r.OpenRoom(9, []entity.ChatMessage{{ID: 3, RoomID: 9, Content: "hi"}})
	if got := len(s.Messages(9)); got != 1 {
		t.Errorf("got %d transcript entries for id 3, want 1", got)
	}
	room, _ = s.Room(9)
	if room.UnreadCount != 0 {
		t.Errorf("unread after open = %d, want 0", room.UnreadCount)
	}
}
