package rest

import (
	"time"

	"github.com/moimapp/moim/internal/entity"
)

// Wire payloads mirror the backend's JSON field names. The push subscriber
// reuses them to decode channel frames, so both delivery paths produce the
// same entity records.

// ChatMessagePayload is a direct-chat message record.
type ChatMessagePayload struct {
	ID                int64  `json:"id"`
	ChatRoomID        int64  `json:"chatRoomId"`
	SenderUserID      string `json:"senderUserId"`
	SenderName        string `json:"senderName"`
	Content           string `json:"content"`
	IsRead            bool   `json:"isRead"`
	SentAt            string `json:"sentAt"`
	DeletedBySender   bool   `json:"deletedBySender"`
	CompletelyDeleted bool   `json:"completelyDeleted"`
}

// Entity converts the payload to the store's message record.
func (p ChatMessagePayload) Entity() entity.ChatMessage {
	return entity.ChatMessage{
		ID:                p.ID,
		RoomID:            p.ChatRoomID,
		RoomKind:          entity.RoomDirect,
		SenderID:          p.SenderUserID,
		SenderName:        p.SenderName,
		Content:           p.Content,
		SentAt:            parseTime(p.SentAt),
		Read:              p.IsRead,
		DeletedBySender:   p.DeletedBySender,
		CompletelyDeleted: p.CompletelyDeleted,
	}
}

// GroupMessagePayload is a group-chat message record.
type GroupMessagePayload struct {
	ID           int64  `json:"id"`
	RoomID       int64  `json:"roomId"`
	SenderUserID string `json:"senderUserId"`
	SenderName   string `json:"senderName"`
	Content      string `json:"content"`
	UnreadCount  int    `json:"unreadCount"`
	SentAt       string `json:"sentAt"`
}

// Entity converts the payload to the store's message record.
func (p GroupMessagePayload) Entity() entity.ChatMessage {
	return entity.ChatMessage{
		ID:         p.ID,
		RoomID:     p.RoomID,
		RoomKind:   entity.RoomGroup,
		SenderID:   p.SenderUserID,
		SenderName: p.SenderName,
		Content:    p.Content,
		SentAt:     parseTime(p.SentAt),
	}
}

// NotificationPayload is a notification record.
type NotificationPayload struct {
	ID           int64  `json:"id"`
	SenderUserID string `json:"senderUserId"`
	SenderName   string `json:"senderName"`
	Type         string `json:"type"`
	Content      string `json:"content"`
	ReferenceID  int64  `json:"referenceId"`
	Read         bool   `json:"read"`
	CreatedAt    string `json:"createdAt"`
}

// Entity converts the payload to the store's notification record.
func (p NotificationPayload) Entity() entity.Notification {
	return entity.Notification{
		ID:          p.ID,
		SenderID:    p.SenderUserID,
		SenderName:  p.SenderName,
		Type:        entity.NotificationType(p.Type),
		Content:     p.Content,
		ReferenceID: p.ReferenceID,
		Read:        p.Read,
		CreatedAt:   parseTime(p.CreatedAt),
	}
}

type userInfoPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type chatRoomPayload struct {
	ID            int64           `json:"id"`
	OtherUser     userInfoPayload `json:"otherUser"`
	LastMessage   string          `json:"lastMessage"`
	LastMessageAt string          `json:"lastMessageAt"`
	UnreadCount   int             `json:"unreadCount"`
}

func (p chatRoomPayload) entity() entity.ChatRoom {
	return entity.ChatRoom{
		ID:            p.ID,
		Kind:          entity.RoomDirect,
		Name:          p.OtherUser.Name,
		Counterpart:   entity.Member{UserID: p.OtherUser.UserID, Name: p.OtherUser.Name},
		LastMessage:   p.LastMessage,
		LastMessageAt: parseTime(p.LastMessageAt),
		UnreadCount:   p.UnreadCount,
	}
}

type groupRoomPayload struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Members       []userInfoPayload `json:"members"`
	LastMessage   string            `json:"lastMessage"`
	LastMessageAt string            `json:"lastMessageAt"`
}

func (p groupRoomPayload) entity() entity.ChatRoom {
	members := make([]entity.Member, 0, len(p.Members))
	for _, m := range p.Members {
		members = append(members, entity.Member{UserID: m.UserID, Name: m.Name})
	}
	return entity.ChatRoom{
		ID:            p.ID,
		Kind:          entity.RoomGroup,
		Name:          p.Name,
		Members:       members,
		LastMessage:   p.LastMessage,
		LastMessageAt: parseTime(p.LastMessageAt),
	}
}

type friendPayload struct {
	FriendshipID int64  `json:"friendshipId"`
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Status       string `json:"status"`    // PENDING, ACCEPTED
	Direction    string `json:"direction"` // SENT, RECEIVED (pending only)
}

// edge maps the backend's friendship record to the client edge states.
func (p friendPayload) edge() entity.FriendEdge {
	status := entity.FriendFriend
	if p.Status == "PENDING" {
		if p.Direction == "RECEIVED" {
			status = entity.FriendReceived
		} else {
			status = entity.FriendSent
		}
	}
	return entity.FriendEdge{
		FriendshipID:    p.FriendshipID,
		CounterpartID:   p.UserID,
		CounterpartName: p.Name,
		Status:          status,
	}
}

type authPayload struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type onlinePayload struct {
	UserID string `json:"userId"`
}

// parseTime handles both zoned and the backend's zone-less timestamps.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02T15:04:05", s)
	return t
}
