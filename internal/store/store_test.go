package store

import (
	"testing"
	"time"

	"github.com/moimapp/moim/internal/bus"
	"github.com/moimapp/moim/internal/entity"
)

func TestUpsertMessageInsertAndDuplicate(t *testing.T) {
	s := New(bus.New())
	s.HydrateRoom(1, nil)

	m := entity.ChatMessage{ID: 501, RoomID: 1, Content: "are you there?"}
	if !s.UpsertMessage(m) {
		t.Fatal("first upsert should insert")
	}
	if s.UpsertMessage(m) {
		t.Error("second upsert of same id should not insert")
	}
	if got := len(s.Messages(1)); got != 1 {
		t.Errorf("got %d messages, want 1", got)
	}
}

func TestUpsertMessageIgnoresUnhydratedRoom(t *testing.T) {
	s := New(bus.New())
	if s.UpsertMessage(entity.ChatMessage{ID: 1, RoomID: 9}) {
		t.Error("upsert into unhydrated room should not insert")
	}
	if got := len(s.Messages(9)); got != 0 {
		t.Errorf("got %d messages, want 0", got)
	}
}

func TestUpsertMessageFlagsNeverRegress(t *testing.T) {
	s := New(bus.New())
	s.HydrateRoom(1, []entity.ChatMessage{{ID: 1, RoomID: 1, Read: true, DeletedBySender: true}})

	// Stale copy claiming unread and undeleted must not win.
	s.UpsertMessage(entity.ChatMessage{ID: 1, RoomID: 1})
	got, ok := s.Message(1, 1)
	if !ok {
		t.Fatal("message missing")
	}
	if !got.Read || !got.DeletedBySender {
		t.Errorf("flags regressed: read=%v deletedBySender=%v", got.Read, got.DeletedBySender)
	}
}

func TestHydrateRoomDeduplicates(t *testing.T) {
	s := New(bus.New())
	s.HydrateRoom(1, []entity.ChatMessage{
		{ID: 1, RoomID: 1, Content: "a"},
		{ID: 2, RoomID: 1, Content: "b"},
		{ID: 1, RoomID: 1, Content: "a again"},
	})
	if got := len(s.Messages(1)); got != 2 {
		t.Errorf("got %d messages, want 2 (dedup by id)", got)
	}
}

func TestRemoveMessage(t *testing.T) {
	s := New(bus.New())
	s.HydrateRoom(1, []entity.ChatMessage{{ID: 1, RoomID: 1}, {ID: 2, RoomID: 1}})
	s.RemoveMessage(1, 1)
	msgs := s.Messages(1)
	if len(msgs) != 1 || msgs[0].ID != 2 {
		t.Errorf("got %v, want only id 2", msgs)
	}
}

func TestDropTranscriptKeepsSummary(t *testing.T) {
	s := New(bus.New())
	s.UpsertRoom(entity.ChatRoom{ID: 1, Kind: entity.RoomDirect, LastMessage: "hello"})
	s.HydrateRoom(1, []entity.ChatMessage{{ID: 1, RoomID: 1}})
	s.DropTranscript(1)

	if s.Hydrated(1) {
		t.Error("transcript should be dropped")
	}
	if _, ok := s.Room(1); !ok {
		t.Error("room summary should survive transcript drop")
	}
}

func TestPutEdgePublishesChange(t *testing.T) {
	b := bus.New()
	s := New(b)
	ch, unsub := b.Subscribe(KindFriendChanged, 10)
	defer unsub()

	s.PutEdge(entity.FriendEdge{FriendshipID: 77, CounterpartID: "b", Status: entity.FriendSent})

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(FriendChange)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if change.CounterpartID != "b" || change.From != entity.FriendNone || change.To != entity.FriendSent {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for friend.changed event")
	}
}

func TestReplaceEdgesDiffEvents(t *testing.T) {
	b := bus.New()
	s := New(b)
	s.PutEdge(entity.FriendEdge{FriendshipID: 1, CounterpartID: "keep", Status: entity.FriendFriend})
	s.PutEdge(entity.FriendEdge{FriendshipID: 2, CounterpartID: "drop", Status: entity.FriendSent})

	ch, unsub := b.Subscribe(KindFriendChanged, 10)
	defer unsub()

	s.ReplaceEdges([]entity.FriendEdge{
		{FriendshipID: 1, CounterpartID: "keep", Status: entity.FriendFriend},
		{FriendshipID: 3, CounterpartID: "new", Status: entity.FriendReceived},
	})

	got := map[string]FriendChange{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			c := evt.Payload.(FriendChange)
			got[c.CounterpartID] = c
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for diff events")
		}
	}
	if c := got["drop"]; c.To != entity.FriendNone {
		t.Errorf("drop change = %+v, want To=NONE", c)
	}
	if c := got["new"]; c.From != entity.FriendNone || c.To != entity.FriendReceived {
		t.Errorf("new change = %+v", c)
	}
	// Unchanged edge must not produce an event.
	select {
	case evt := <-ch:
		t.Errorf("unexpected extra event: %v", evt.Payload)
	case <-time.After(50 * time.Millisecond):
	}
	if _, ok := s.Edge("drop"); ok {
		t.Error("dropped edge still present")
	}
}

func TestUpsertNotificationPrependAndCap(t *testing.T) {
	s := New(bus.New())
	for i := 1; i <= maxNotifications+5; i++ {
		s.UpsertNotification(entity.Notification{ID: int64(i)})
	}
	feed := s.Notifications()
	if len(feed) != maxNotifications {
		t.Fatalf("feed length = %d, want %d", len(feed), maxNotifications)
	}
	if feed[0].ID != int64(maxNotifications+5) {
		t.Errorf("feed head = %d, want most recent", feed[0].ID)
	}
}

func TestNotificationReadMonotonic(t *testing.T) {
	s := New(bus.New())
	s.UpsertNotification(entity.Notification{ID: 1, Read: true})
	if inserted := s.UpsertNotification(entity.Notification{ID: 1, Read: false}); inserted {
		t.Error("duplicate id reported as inserted")
	}
	if feed := s.Notifications(); !feed[0].Read {
		t.Error("read flag regressed to unread")
	}
}

func TestReplacePresence(t *testing.T) {
	s := New(bus.New())
	s.ReplacePresence([]string{"a", "b"})
	if !s.Online("a") || s.Online("c") {
		t.Error("presence membership wrong after replace")
	}
	s.ReplacePresence([]string{"c"})
	if s.Online("a") || !s.Online("c") {
		t.Error("stale presence survived full replace")
	}
}

func TestReplaceRoomsKeepsOtherKind(t *testing.T) {
	s := New(bus.New())
	s.UpsertRoom(entity.ChatRoom{ID: 1, Kind: entity.RoomDirect})
	s.UpsertRoom(entity.ChatRoom{ID: 2, Kind: entity.RoomGroup})

	s.ReplaceRooms(entity.RoomDirect, []entity.ChatRoom{{ID: 3, Kind: entity.RoomDirect}})

	if _, ok := s.Room(1); ok {
		t.Error("stale direct room survived replace")
	}
	if _, ok := s.Room(2); !ok {
		t.Error("group room removed by direct replace")
	}
	if _, ok := s.Room(3); !ok {
		t.Error("new direct room missing")
	}
}
