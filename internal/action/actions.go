// Package action turns user intent into backend mutations. Each action calls
// the REST backend and, on success, feeds the result through the reconciler
// so the store update takes the same path a pushed event would.
package action

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/entity"
	"github.com/moimapp/moim/internal/recon"
	"github.com/moimapp/moim/internal/rest"
	"github.com/moimapp/moim/internal/store"
)

// Backend is the slice of the REST client the action layer mutates through.
type Backend interface {
	SendMessage(ctx context.Context, roomID int64, content string) (entity.ChatMessage, error)
	SendGroupMessage(ctx context.Context, roomID int64, content string) (entity.ChatMessage, error)
	DeleteMessage(ctx context.Context, msgID int64) error
	DeleteGroupMessage(ctx context.Context, msgID int64) error
	Messages(ctx context.Context, roomID int64) ([]entity.ChatMessage, error)
	GroupMessages(ctx context.Context, roomID int64) ([]entity.ChatMessage, error)
	SendFriendRequest(ctx context.Context, targetUserID string) (entity.FriendEdge, error)
	AcceptFriendRequest(ctx context.Context, friendshipID int64) (entity.FriendEdge, error)
	RemoveFriendship(ctx context.Context, friendshipID int64) error
	MarkNotificationRead(ctx context.Context, notificationID int64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

var _ Backend = (*rest.Client)(nil)

// ConflictError reports a precondition the client could check locally, such
// as requesting friendship with an existing friend. It surfaces to the caller
// the same way a backend conflict does.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// Actions is the user-facing mutation surface. Transport failures are logged
// and absorbed, leaving the store stale until the next poll; conflict and
// validation errors propagate to the caller.
type Actions struct {
	backend Backend
	recon   *recon.Reconciler
	store   *store.Store
	logger  *zap.Logger
}

// New creates the action layer.
func New(backend Backend, r *recon.Reconciler, s *store.Store, logger *zap.Logger) *Actions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actions{backend: backend, recon: r, store: s, logger: logger}
}

// absorb logs a transport error and swallows it; conflicts pass through.
func (a *Actions) absorb(op string, err error) error {
	if err == nil {
		return nil
	}
	if rest.IsConflict(err) {
		return err
	}
	a.logger.Warn("action failed", zap.String("op", op), zap.Error(err))
	return nil
}

// SendMessage sends a direct chat message and applies the echoed result.
func (a *Actions) SendMessage(ctx context.Context, roomID int64, content string) error {
	msg, err := a.backend.SendMessage(ctx, roomID, content)
	if err != nil {
		return a.absorb("send message", err)
	}
	a.recon.ApplyMessage(msg)
	return nil
}

// SendGroupMessage sends a group chat message and applies the echoed result.
func (a *Actions) SendGroupMessage(ctx context.Context, roomID int64, content string) error {
	msg, err := a.backend.SendGroupMessage(ctx, roomID, content)
	if err != nil {
		return a.absorb("send group message", err)
	}
	a.recon.ApplyMessage(msg)
	return nil
}

// DeleteMessage deletes one of the user's own messages. The room kind picks
// the backend endpoint; the local copy is flagged deleted-by-sender so the
// transcript keeps its placeholder row.
func (a *Actions) DeleteMessage(ctx context.Context, roomID, msgID int64) error {
	kind := entity.RoomDirect
	if room, ok := a.store.Room(roomID); ok {
		kind = room.Kind
	}

	var err error
	if kind == entity.RoomGroup {
		err = a.backend.DeleteGroupMessage(ctx, msgID)
	} else {
		err = a.backend.DeleteMessage(ctx, msgID)
	}
	if err != nil {
		return a.absorb("delete message", err)
	}

	if msg, ok := a.store.Message(roomID, msgID); ok {
		msg.DeletedBySender = true
		a.recon.ApplyMessage(msg)
	}
	return nil
}

// RequestFriend sends a friend request. A non-NONE local edge fails the
// precondition without a network call; a backend conflict surfaces verbatim
// and leaves the store untouched.
func (a *Actions) RequestFriend(ctx context.Context, targetUserID string) error {
	if cur, ok := a.store.Edge(targetUserID); ok {
		return &ConflictError{Message: fmt.Sprintf("relationship with %s already %s", targetUserID, cur.Status)}
	}
	edge, err := a.backend.SendFriendRequest(ctx, targetUserID)
	if err != nil {
		return a.absorb("send friend request", err)
	}
	a.recon.ApplyEdge(edge)
	return nil
}

// AcceptFriend accepts a received friend request.
func (a *Actions) AcceptFriend(ctx context.Context, counterpartID string) error {
	cur, ok := a.store.Edge(counterpartID)
	if !ok || cur.Status != entity.FriendReceived {
		return &ConflictError{Message: fmt.Sprintf("no pending request from %s", counterpartID)}
	}
	edge, err := a.backend.AcceptFriendRequest(ctx, cur.FriendshipID)
	if err != nil {
		return a.absorb("accept friend request", err)
	}
	a.recon.ApplyEdge(edge)
	return nil
}

// CancelRequest withdraws a request the user sent.
func (a *Actions) CancelRequest(ctx context.Context, counterpartID string) error {
	return a.removeEdge(ctx, "cancel friend request", counterpartID, entity.FriendSent)
}

// RejectRequest declines a request the user received.
func (a *Actions) RejectRequest(ctx context.Context, counterpartID string) error {
	return a.removeEdge(ctx, "reject friend request", counterpartID, entity.FriendReceived)
}

// Unfriend removes an established friendship.
func (a *Actions) Unfriend(ctx context.Context, counterpartID string) error {
	return a.removeEdge(ctx, "unfriend", counterpartID, entity.FriendFriend)
}

// removeEdge maps cancel, reject and unfriend onto the backend's single
// delete-edge call. The required current status is the precondition; on
// success the edge drops to NONE locally.
func (a *Actions) removeEdge(ctx context.Context, op, counterpartID string, want entity.FriendStatus) error {
	cur, ok := a.store.Edge(counterpartID)
	if !ok || cur.Status != want {
		return &ConflictError{Message: fmt.Sprintf("relationship with %s is not %s", counterpartID, want)}
	}
	if err := a.backend.RemoveFriendship(ctx, cur.FriendshipID); err != nil {
		return a.absorb(op, err)
	}
	a.recon.ApplyEdge(entity.FriendEdge{CounterpartID: counterpartID, Status: entity.FriendNone})
	return nil
}

// MarkNotificationRead marks one notification read on the backend, then
// locally.
func (a *Actions) MarkNotificationRead(ctx context.Context, id int64) error {
	if err := a.backend.MarkNotificationRead(ctx, id); err != nil {
		return a.absorb("mark notification read", err)
	}
	a.recon.MarkNotificationRead(id)
	return nil
}

// MarkAllNotificationsRead marks the whole feed read.
func (a *Actions) MarkAllNotificationsRead(ctx context.Context) error {
	if err := a.backend.MarkAllNotificationsRead(ctx); err != nil {
		return a.absorb("mark all notifications read", err)
	}
	a.recon.MarkAllNotificationsRead()
	return nil
}

// OpenRoom fetches the room's transcript and opens it in the reconciler.
// Unlike other actions the fetch error propagates: a room cannot open
// without its transcript, and the backend marks messages read during this
// fetch, so a silent empty open would lie about both.
func (a *Actions) OpenRoom(ctx context.Context, roomID int64) error {
	kind := entity.RoomDirect
	if room, ok := a.store.Room(roomID); ok {
		kind = room.Kind
	}

	var (
		msgs []entity.ChatMessage
		err  error
	)
	if kind == entity.RoomGroup {
		msgs, err = a.backend.GroupMessages(ctx, roomID)
	} else {
		msgs, err = a.backend.Messages(ctx, roomID)
	}
	if err != nil {
		return fmt.Errorf("open room %d: %w", roomID, err)
	}
	a.recon.OpenRoom(roomID, msgs)
	return nil
}

// CloseRoom closes the currently open room.
func (a *Actions) CloseRoom() {
	a.recon.CloseRoom()
}
