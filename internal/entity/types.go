package entity

import "time"

// RoomKind distinguishes direct (1:1) chat rooms from group rooms.
type RoomKind string

const (
	RoomDirect RoomKind = "DIRECT"
	RoomGroup  RoomKind = "GROUP"
)

// ChatMessage is a single message in a chat room. Identifiers are assigned
// by the backend; the client never mints ids for persisted entities.
// Content is immutable once delivered, only the read and delete flags change.
type ChatMessage struct {
	ID                int64
	RoomID            int64
	RoomKind          RoomKind
	SenderID          string
	SenderName        string
	Content           string
	SentAt            time.Time
	Read              bool
	DeletedBySender   bool
	CompletelyDeleted bool
}

// Member is a participant summary inside a room.
type Member struct {
	UserID string
	Name   string
}

// ChatRoom is a room summary. The full transcript is held only for the
// currently open room; other rooms exist as summaries until opened.
type ChatRoom struct {
	ID            int64
	Kind          RoomKind
	Name          string
	Counterpart   Member   // direct rooms only
	Members       []Member // group rooms only
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
}

// Notification is an alert delivered to the user. Append-only except for
// the read flag.
type Notification struct {
	ID          int64
	SenderID    string
	SenderName  string
	Type        NotificationType
	Content     string
	ReferenceID int64
	Read        bool
	CreatedAt   time.Time
}

// NotificationType enumerates the backend's notification kinds.
type NotificationType string

const (
	NotifMessage             NotificationType = "MESSAGE"
	NotifFriendRequest       NotificationType = "FRIEND_REQUEST"
	NotifFriendAccepted      NotificationType = "FRIEND_ACCEPTED"
	NotifComment             NotificationType = "COMMENT"
	NotifLike                NotificationType = "LIKE"
	NotifChat                NotificationType = "CHAT"
	NotifGroupChat           NotificationType = "GROUP_CHAT"
	NotifReunionInvite       NotificationType = "REUNION_INVITE"
	NotifMeetingCreated      NotificationType = "MEETING_CREATED"
	NotifMeetingConfirmed    NotificationType = "MEETING_CONFIRMED"
	NotifMeetingCancelled    NotificationType = "MEETING_CANCELLED"
	NotifFeeCreated          NotificationType = "FEE_CREATED"
	NotifFeeUpdated          NotificationType = "FEE_UPDATED"
	NotifReunionJoinRequest  NotificationType = "REUNION_JOIN_REQUEST"
	NotifReunionJoinApproved NotificationType = "REUNION_JOIN_APPROVED"
	NotifReunionJoinRejected NotificationType = "REUNION_JOIN_REJECTED"
	NotifReunionPost         NotificationType = "REUNION_POST"
)
