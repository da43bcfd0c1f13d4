// Package push owns the websocket push channel. A Subscription holds exactly
// one connection for one topic set; inbound frames are parsed and published
// on the bus unmodified. No merge logic lives here; the reconciler
// subscribes to "push." independently.
package push

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/bus"
)

// Bus event kinds published by this package.
const (
	KindChatMessage  = "push.chat.message"
	KindGroupMessage = "push.group.message"
	KindNotification = "push.notification"
	KindConnected    = "conn.up"
	KindDisconnected = "conn.down"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 512 * 1024
)

// Topic builders for the three topics the core observes.

// ChatTopic is the per-room direct chat topic.
func ChatTopic(roomID int64) string { return fmt.Sprintf("chat/%d", roomID) }

// GroupChatTopic is the per-room group chat topic.
func GroupChatTopic(roomID int64) string { return fmt.Sprintf("group-chat/%d", roomID) }

// NotificationTopic is the per-user notification topic.
func NotificationTopic(userID string) string { return fmt.Sprintf("notifications/%s", userID) }

type subscribeFrame struct {
	Action string `json:"action"`
	ID     string `json:"id"`
	Topic  string `json:"topic"`
}

// Client dials push channel connections. One Client is shared process-wide;
// each view owns its Subscriptions.
type Client struct {
	wsURL          string
	bus            *bus.Bus
	logger         *zap.Logger
	reconnectDelay time.Duration
}

// NewClient creates a push channel client for the given websocket URL.
func NewClient(wsURL string, b *bus.Bus, logger *zap.Logger, reconnectDelay time.Duration) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{wsURL: wsURL, bus: b, logger: logger, reconnectDelay: reconnectDelay}
}

// Subscribe opens a connection subscribed to the given topics and keeps it
// alive until Close. On transport failure it redials after a fixed delay and
// re-issues the subscribe frames; missed events are not buffered, the next
// full fetch or poll restores correctness.
func (c *Client) Subscribe(topics ...string) *Subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscription{
		client: c,
		topics: topics,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

// Subscription is one live push channel connection for one topic set.
type Subscription struct {
	client *Client
	topics []string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Topics returns the subscribed topics.
func (s *Subscription) Topics() []string { return s.topics }

// Close tears the subscription down synchronously: when it returns, the
// connection is closed and no further events for these topics will be
// published, for any interleaving with reconnects.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		_ = conn.Close() // unblocks the read pump
	}
	<-s.done
}

func (s *Subscription) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Close can land between a dial returning and the conn being recorded
	// here; it then finds no conn to close. Closing the late arrival under
	// the same mutex keeps the read pump from outliving Close.
	if s.closed && conn != nil {
		_ = conn.Close()
	}
	s.conn = conn
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.client.wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.client.logger.Warn("push channel dial failed", zap.Error(err))
			if !s.wait(ctx) {
				return
			}
			continue
		}
		s.setConn(conn)

		if err := s.subscribeAll(conn); err != nil {
			s.client.logger.Warn("push channel subscribe failed", zap.Error(err))
			s.setConn(nil)
			_ = conn.Close()
			if !s.wait(ctx) {
				return
			}
			continue
		}
		s.client.bus.PublishKind(KindConnected, s.topics)

		s.readPump(conn)
		s.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		s.client.bus.PublishKind(KindDisconnected, s.topics)
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *Subscription) wait(ctx context.Context) bool {
	select {
	case <-time.After(s.client.reconnectDelay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Subscription) subscribeAll(conn *websocket.Conn) error {
	for _, topic := range s.topics {
		frame := subscribeFrame{Action: "subscribe", ID: uuid.New().String(), Topic: topic}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(frame); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (s *Subscription) readPump(conn *websocket.Conn) {
	stop := make(chan struct{})
	go pingLoop(conn, stop)
	defer close(stop)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.client.logger.Warn("push channel read error", zap.Error(err))
			}
			return
		}
		s.client.handleFrame(data)
	}
}

func pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}
