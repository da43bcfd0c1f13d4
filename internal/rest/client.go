// Package rest is the request/response boundary to the moim backend. Every
// collection fetch and every user-initiated mutation goes through here; the
// results are handed to the reconciler, which treats them identically to
// pushed events.
package rest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/entity"
)

type errBody struct {
	Message string `json:"message"`
}

// Auth is the result of a successful login.
type Auth struct {
	Token  string
	UserID string
	Name   string
	Email  string
}

// Client is an authenticated REST client for the backend API.
type Client struct {
	rc     *resty.Client
	logger *zap.Logger
	userID string
}

// NewClient creates a client for the given API base URL, e.g.
// "http://localhost:8080/api".
func NewClient(baseURL string, logger *zap.Logger) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{rc: rc, logger: logger}
}

// UserID returns the authenticated user id, empty before login.
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	req := c.rc.R().SetContext(ctx).SetError(&errBody{})
	if c.userID != "" {
		req.SetQueryParam("userId", c.userID)
	}
	for k, v := range query {
		req.SetQueryParam(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if eb, ok := resp.Error().(*errBody); ok && eb.Message != "" {
			apiErr.Message = eb.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(resp.Body()))
		}
		return apiErr
	}
	return nil
}

// --- auth ---

// Login authenticates and binds the client to the returned session.
func (c *Client) Login(ctx context.Context, userID, password string) (Auth, error) {
	var p authPayload
	err := c.do(ctx, resty.MethodPost, "/auth/login",
		nil, map[string]string{"userId": userID, "password": password}, &p)
	if err != nil {
		return Auth{}, err
	}
	c.userID = p.UserID
	c.rc.SetAuthToken(p.Token)
	return Auth{Token: p.Token, UserID: p.UserID, Name: p.Name, Email: p.Email}, nil
}

// Logout ends the backend session. The client keeps no state worth clearing
// beyond the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, resty.MethodPost, "/auth/logout",
		nil, map[string]string{"userId": c.userID}, nil)
	c.userID = ""
	c.rc.SetAuthToken("")
	return err
}

// Heartbeat reports liveness so the user counts as online.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, resty.MethodPost, "/auth/heartbeat",
		nil, map[string]string{"userId": c.userID}, nil)
}

// --- direct chat ---

// Rooms returns the user's direct chat room summaries.
func (c *Client) Rooms(ctx context.Context) ([]entity.ChatRoom, error) {
	var payload []chatRoomPayload
	if err := c.do(ctx, resty.MethodGet, "/chat/rooms", nil, nil, &payload); err != nil {
		return nil, err
	}
	rooms := make([]entity.ChatRoom, 0, len(payload))
	for _, p := range payload {
		rooms = append(rooms, p.entity())
	}
	return rooms, nil
}

// CreateOrGetRoom returns the direct room id shared with another user,
// creating it if necessary.
func (c *Client) CreateOrGetRoom(ctx context.Context, otherUserID string) (int64, error) {
	var out struct {
		RoomID int64 `json:"roomId"`
	}
	err := c.do(ctx, resty.MethodPost, "/chat/rooms",
		map[string]string{"otherUserId": otherUserID}, nil, &out)
	return out.RoomID, err
}

// Messages returns the full transcript of a direct room. The backend marks
// the caller's unread messages read as a side effect of this fetch.
func (c *Client) Messages(ctx context.Context, roomID int64) ([]entity.ChatMessage, error) {
	var payload []ChatMessagePayload
	path := fmt.Sprintf("/chat/rooms/%d/messages", roomID)
	if err := c.do(ctx, resty.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}
	msgs := make([]entity.ChatMessage, 0, len(payload))
	for _, p := range payload {
		msgs = append(msgs, p.Entity())
	}
	return msgs, nil
}

// SendMessage posts a message and returns the stored record.
func (c *Client) SendMessage(ctx context.Context, roomID int64, content string) (entity.ChatMessage, error) {
	var p ChatMessagePayload
	path := fmt.Sprintf("/chat/rooms/%d/messages", roomID)
	err := c.do(ctx, resty.MethodPost, path, nil, map[string]string{"content": content}, &p)
	if err != nil {
		return entity.ChatMessage{}, err
	}
	return p.Entity(), nil
}

// DeleteMessage soft-deletes a direct message.
func (c *Client) DeleteMessage(ctx context.Context, msgID int64) error {
	return c.do(ctx, resty.MethodDelete, fmt.Sprintf("/chat/messages/%d", msgID), nil, nil, nil)
}

// LeaveRoom removes the user from a direct room.
func (c *Client) LeaveRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, resty.MethodDelete, fmt.Sprintf("/chat/rooms/%d/leave", roomID), nil, nil, nil)
}

// MarkAllChatRead marks every direct message as read.
func (c *Client) MarkAllChatRead(ctx context.Context) error {
	return c.do(ctx, resty.MethodPut, "/chat/mark-all-read", nil, nil, nil)
}

// --- group chat ---

// GroupRooms returns the user's group room summaries.
func (c *Client) GroupRooms(ctx context.Context) ([]entity.ChatRoom, error) {
	var payload []groupRoomPayload
	if err := c.do(ctx, resty.MethodGet, "/group-chat/rooms", nil, nil, &payload); err != nil {
		return nil, err
	}
	rooms := make([]entity.ChatRoom, 0, len(payload))
	for _, p := range payload {
		rooms = append(rooms, p.entity())
	}
	return rooms, nil
}

// GroupMessages returns the full transcript of a group room.
func (c *Client) GroupMessages(ctx context.Context, roomID int64) ([]entity.ChatMessage, error) {
	var payload []GroupMessagePayload
	path := fmt.Sprintf("/group-chat/rooms/%d/messages", roomID)
	if err := c.do(ctx, resty.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}
	msgs := make([]entity.ChatMessage, 0, len(payload))
	for _, p := range payload {
		msgs = append(msgs, p.Entity())
	}
	return msgs, nil
}

// SendGroupMessage posts a group message and returns the stored record.
func (c *Client) SendGroupMessage(ctx context.Context, roomID int64, content string) (entity.ChatMessage, error) {
	var p GroupMessagePayload
	path := fmt.Sprintf("/group-chat/rooms/%d/messages", roomID)
	err := c.do(ctx, resty.MethodPost, path, nil, map[string]string{"content": content}, &p)
	if err != nil {
		return entity.ChatMessage{}, err
	}
	return p.Entity(), nil
}

// DeleteGroupMessage soft-deletes a group message.
func (c *Client) DeleteGroupMessage(ctx context.Context, msgID int64) error {
	return c.do(ctx, resty.MethodDelete, fmt.Sprintf("/group-chat/messages/%d", msgID), nil, nil, nil)
}

// InviteMember invites another user into a group room.
func (c *Client) InviteMember(ctx context.Context, roomID int64, newMemberID string) error {
	return c.do(ctx, resty.MethodPost, fmt.Sprintf("/group-chat/rooms/%d/invite", roomID),
		map[string]string{"newMemberId": newMemberID}, nil, nil)
}

// LeaveGroupRoom removes the user from a group room.
func (c *Client) LeaveGroupRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, resty.MethodDelete, fmt.Sprintf("/group-chat/rooms/%d/leave", roomID), nil, nil, nil)
}

// --- friends ---

// Friends returns all established friendships as FRIEND edges.
func (c *Client) Friends(ctx context.Context) ([]entity.FriendEdge, error) {
	return c.friendList(ctx, "/friends", "")
}

// PendingRequests returns requests sent to the user as RECEIVED edges.
func (c *Client) PendingRequests(ctx context.Context) ([]entity.FriendEdge, error) {
	return c.friendList(ctx, "/friends/pending", "RECEIVED")
}

// SentRequests returns requests the user sent as SENT edges.
func (c *Client) SentRequests(ctx context.Context) ([]entity.FriendEdge, error) {
	return c.friendList(ctx, "/friends/sent", "SENT")
}

func (c *Client) friendList(ctx context.Context, path, direction string) ([]entity.FriendEdge, error) {
	var payload []friendPayload
	if err := c.do(ctx, resty.MethodGet, path, nil, nil, &payload); err != nil {
		return nil, err
	}
	edges := make([]entity.FriendEdge, 0, len(payload))
	for _, p := range payload {
		if direction != "" && p.Direction == "" {
			p.Direction = direction
		}
		edges = append(edges, p.edge())
	}
	return edges, nil
}

// SendFriendRequest creates a pending friendship toward targetUserID.
// An existing edge for the pair fails with a conflict APIError.
func (c *Client) SendFriendRequest(ctx context.Context, targetUserID string) (entity.FriendEdge, error) {
	var p friendPayload
	err := c.do(ctx, resty.MethodPost, "/friends/request",
		map[string]string{"targetUserId": targetUserID}, nil, &p)
	if err != nil {
		return entity.FriendEdge{}, err
	}
	if p.Direction == "" {
		p.Direction = "SENT"
	}
	return p.edge(), nil
}

// AcceptFriendRequest accepts a pending friendship by its id.
func (c *Client) AcceptFriendRequest(ctx context.Context, friendshipID int64) (entity.FriendEdge, error) {
	var p friendPayload
	path := fmt.Sprintf("/friends/%d/accept", friendshipID)
	if err := c.do(ctx, resty.MethodPost, path, nil, nil, &p); err != nil {
		return entity.FriendEdge{}, err
	}
	return p.edge(), nil
}

// RemoveFriendship deletes an edge. Cancelling a sent request, rejecting a
// received one and unfriending all map to this one backend operation; the
// client chooses which transition it means from local state.
func (c *Client) RemoveFriendship(ctx context.Context, friendshipID int64) error {
	return c.do(ctx, resty.MethodDelete, fmt.Sprintf("/friends/%d", friendshipID), nil, nil, nil)
}

// FriendStatuses returns the batch friendship status per target user id.
func (c *Client) FriendStatuses(ctx context.Context, targetUserIDs []string) (map[string]entity.FriendStatus, error) {
	if len(targetUserIDs) == 0 {
		return map[string]entity.FriendStatus{}, nil
	}
	var payload map[string]struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, resty.MethodGet, "/friends/statuses",
		map[string]string{"targetUserIds": strings.Join(targetUserIDs, ",")}, nil, &payload)
	if err != nil {
		return nil, err
	}
	out := make(map[string]entity.FriendStatus, len(payload))
	for id, s := range payload {
		out[id] = entity.FriendStatus(s.Status)
	}
	return out, nil
}

// --- notifications ---

// Notifications returns the feed, most recent first.
func (c *Client) Notifications(ctx context.Context) ([]entity.Notification, error) {
	var payload []NotificationPayload
	if err := c.do(ctx, resty.MethodGet, "/notifications", nil, nil, &payload); err != nil {
		return nil, err
	}
	ns := make([]entity.Notification, 0, len(payload))
	for _, p := range payload {
		ns = append(ns, p.Entity())
	}
	return ns, nil
}

// NotificationUnreadCount returns the unread notification count.
func (c *Client) NotificationUnreadCount(ctx context.Context) (int, error) {
	var raw string
	resp, err := c.rc.R().SetContext(ctx).
		SetQueryParam("userId", c.userID).
		Get("/notifications/unread-count")
	if err != nil {
		return 0, fmt.Errorf("GET /notifications/unread-count: %w", err)
	}
	if resp.IsError() {
		return 0, &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
	}
	raw = strings.TrimSpace(string(resp.Body()))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse unread count %q: %w", raw, err)
	}
	return n, nil
}

// MarkNotificationRead marks a single notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID int64) error {
	return c.do(ctx, resty.MethodPut, fmt.Sprintf("/notifications/%d/read", notificationID), nil, nil, nil)
}

// MarkAllNotificationsRead marks the whole feed read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, resty.MethodPut, "/notifications/read-all", nil, nil, nil)
}

// --- presence ---

// OnlineClassmates returns the ids of classmates currently online. Presence
// has no push coverage; this snapshot fully replaces the local set.
func (c *Client) OnlineClassmates(ctx context.Context) ([]string, error) {
	var payload []onlinePayload
	if err := c.do(ctx, resty.MethodGet, "/users/online", nil, nil, &payload); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(payload))
	for _, p := range payload {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}
