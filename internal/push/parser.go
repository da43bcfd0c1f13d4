package push

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/moimapp/moim/internal/rest"
)

type eventFrame struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// handleFrame parses one inbound frame and publishes the entity record on
// the bus. Malformed frames are dropped and logged; the next poll or fetch
// repairs any gap.
func (c *Client) handleFrame(data []byte) {
	var frame eventFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn("dropping unparsable push frame", zap.Error(err))
		return
	}

	switch {
	case strings.HasPrefix(frame.Topic, "chat/"):
		var p rest.ChatMessagePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed chat payload", zap.String("topic", frame.Topic), zap.Error(err))
			return
		}
		c.bus.PublishKind(KindChatMessage, p.Entity())
	case strings.HasPrefix(frame.Topic, "group-chat/"):
		var p rest.GroupMessagePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed group chat payload", zap.String("topic", frame.Topic), zap.Error(err))
			return
		}
		c.bus.PublishKind(KindGroupMessage, p.Entity())
	case strings.HasPrefix(frame.Topic, "notifications/"):
		var p rest.NotificationPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.logger.Warn("dropping malformed notification payload", zap.String("topic", frame.Topic), zap.Error(err))
			return
		}
		c.bus.PublishKind(KindNotification, p.Entity())
	default:
		c.logger.Debug("ignoring frame for unknown topic", zap.String("topic", frame.Topic))
	}
}
