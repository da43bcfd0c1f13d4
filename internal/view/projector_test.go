package view

import (
	"testing"
	"time"

	"github.com/moimapp/moim/internal/entity"
	"github.com/moimapp/moim/internal/store"
)

func newProjector() (*Projector, *store.Store) {
	s := store.New(nil)
	return New(s), s
}

func TestUnreadBadgeCountsUnreadNotifications(t *testing.T) {
	p, s := newProjector()

	s.UpsertNotification(entity.Notification{ID: 1, Type: entity.NotifMessage})
	s.UpsertNotification(entity.Notification{ID: 2, Type: entity.NotifLike, Read: true})
	s.UpsertNotification(entity.Notification{ID: 3, Type: entity.NotifFriendRequest})

	if got, want := p.UnreadBadge(), 2; got != want {
		t.Fatalf("unread badge = %d, want %d", got, want)
	}

	s.MarkAllNotificationsRead()
	if got := p.UnreadBadge(); got != 0 {
		t.Fatalf("unread badge after mark all = %d, want 0", got)
	}
}

func TestUnreadMessageTotalSumsRooms(t *testing.T) {
	p, s := newProjector()

	s.UpsertRoom(entity.ChatRoom{ID: 1, Kind: entity.RoomDirect, UnreadCount: 2})
	s.UpsertRoom(entity.ChatRoom{ID: 2, Kind: entity.RoomGroup, UnreadCount: 5})
	s.UpsertRoom(entity.ChatRoom{ID: 3, Kind: entity.RoomDirect})

	if got, want := p.UnreadMessageTotal(), 7; got != want {
		t.Fatalf("unread message total = %d, want %d", got, want)
	}
}

func TestRoomListSortedByLastMessageTime(t *testing.T) {
	p, s := newProjector()

	base := time.Now()
	s.UpsertRoom(entity.ChatRoom{ID: 1, LastMessageAt: base.Add(-time.Hour)})
	s.UpsertRoom(entity.ChatRoom{ID: 2, LastMessageAt: base})
	s.UpsertRoom(entity.ChatRoom{ID: 3, LastMessageAt: base.Add(-time.Minute)})

	rooms := p.RoomList()
	if len(rooms) != 3 {
		t.Fatalf("room list length = %d, want 3", len(rooms))
	}
	for i, want := range []int64{2, 3, 1} {
		if rooms[i].ID != want {
			t.Fatalf("room list[%d].ID = %d, want %d", i, rooms[i].ID, want)
		}
	}
}

func TestTranscriptArrivalOrder(t *testing.T) {
	p, s := newProjector()

	s.HydrateRoom(7, []entity.ChatMessage{
		{ID: 10, RoomID: 7, Content: "first"},
		{ID: 11, RoomID: 7, Content: "second"},
	})
	s.UpsertMessage(entity.ChatMessage{ID: 12, RoomID: 7, Content: "third"})

	msgs := p.Transcript(7)
	if len(msgs) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(msgs))
	}
	for i, want := range []int64{10, 11, 12} {
		if msgs[i].ID != want {
			t.Fatalf("transcript[%d].ID = %d, want %d", i, msgs[i].ID, want)
		}
	}
}

func TestFriendStatusForDefaultsToNone(t *testing.T) {
	p, s := newProjector()

	s.PutEdge(entity.FriendEdge{FriendshipID: 5, CounterpartID: "u2", Status: entity.FriendFriend})

	if got := p.FriendStatusFor("u2"); got != entity.FriendFriend {
		t.Fatalf("status for u2 = %s, want FRIEND", got)
	}
	if got := p.FriendStatusFor("stranger"); got != entity.FriendNone {
		t.Fatalf("status for stranger = %s, want NONE", got)
	}
}

func TestEdgeListsSplitByStatus(t *testing.T) {
	p, s := newProjector()

	s.PutEdge(entity.FriendEdge{FriendshipID: 1, CounterpartID: "a", Status: entity.FriendFriend})
	s.PutEdge(entity.FriendEdge{FriendshipID: 2, CounterpartID: "b", Status: entity.FriendSent})
	s.PutEdge(entity.FriendEdge{FriendshipID: 3, CounterpartID: "c", Status: entity.FriendReceived})
	s.PutEdge(entity.FriendEdge{FriendshipID: 4, CounterpartID: "d", Status: entity.FriendFriend})

	friends := p.Friends()
	if len(friends) != 2 || friends[0].CounterpartID != "a" || friends[1].CounterpartID != "d" {
		t.Fatalf("friends = %+v, want [a d]", friends)
	}
	if got := p.PendingRequests(); len(got) != 1 || got[0].CounterpartID != "c" {
		t.Fatalf("pending = %+v, want [c]", got)
	}
	if got := p.SentRequests(); len(got) != 1 || got[0].CounterpartID != "b" {
		t.Fatalf("sent = %+v, want [b]", got)
	}
}

func TestPresenceReads(t *testing.T) {
	p, s := newProjector()

	s.ReplacePresence([]string{"u3", "u1"})

	if !p.IsOnline("u1") {
		t.Fatal("u1 should be online")
	}
	if p.IsOnline("u9") {
		t.Fatal("u9 should be offline")
	}
	online := p.OnlineNow()
	if len(online) != 2 || online[0] != "u1" || online[1] != "u3" {
		t.Fatalf("online = %v, want [u1 u3]", online)
	}
}

func TestNotificationFeedMostRecentFirst(t *testing.T) {
	p, s := newProjector()

	s.UpsertNotification(entity.Notification{ID: 1})
	s.UpsertNotification(entity.Notification{ID: 2})
	s.UpsertNotification(entity.Notification{ID: 3})

	feed := p.NotificationFeed()
	if len(feed) != 3 {
		t.Fatalf("feed length = %d, want 3", len(feed))
	}
	for i, want := range []int64{3, 2, 1} {
		if feed[i].ID != want {
			t.Fatalf("feed[%d].ID = %d, want %d", i, feed[i].ID, want)
		}
	}
}
