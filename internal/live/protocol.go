package live

import (
	"encoding/json"
	"time"
)

// MessageType discriminates live channel frames.
type MessageType string

// Inbound (server→client) and outbound (client→server) frame types.
const (
	MsgConnection      MessageType = "connection"
	MsgSubscribe       MessageType = "subscribe"
	MsgSubscribed      MessageType = "subscribed"
	MsgAnalyticsUpdate MessageType = "analytics_update"
	MsgPlatformMetrics MessageType = "platform_metrics"
	MsgAlert           MessageType = "alert"
	MsgNotification    MessageType = "notification"
	MsgPing            MessageType = "ping"
	MsgPong            MessageType = "pong"
	MsgError           MessageType = "error"
)

// Message is one live channel frame. Payload carries the type-specific
// body; Channel scopes subscribe/subscribed and broadcast frames.
type Message struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// NewMessage builds a frame with the payload marshalled in.
func NewMessage(t MessageType, channel string, payload interface{}) (Message, error) {
	msg := Message{Type: t, Channel: channel, Timestamp: time.Now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = raw
	}
	return msg, nil
}
