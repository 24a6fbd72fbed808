package websocket

import (
	"encoding/json"
	"time"
)

// Inbound event types.
const (
	EventSendMessage            = "send_message"
	EventMarkMessagesRead       = "mark_messages_read"
	EventTypingStart            = "typing_start"
	EventTypingStop             = "typing_stop"
	EventLocationUpdate         = "location_update"
	EventRequestLocationRefresh = "request_location_refresh"
	EventUpdatePresence         = "update_presence"
)

// Outbound event types.
const (
	EventConnected       = "connected"
	EventOnlineUsers     = "online_users"
	EventUserOnline      = "user_online"
	EventUserOffline     = "user_offline"
	EventNewMessage      = "new_message"
	EventMessagesRead    = "messages_read"
	EventUserTyping      = "user_typing"
	EventLocationUpdated = "location_updated"
	EventFundiArrived    = "fundi_arrived"
	EventError           = "error"

	EventPresenceUpdated          = "presence_updated"
	EventLocationRefreshRequested = "location_refresh_requested"
)

const envelopeVersion = 1

// Event is the inbound wire envelope. Data stays raw until the handler for
// the concrete type decodes it.
type Event struct {
	Version int             `json:"v,omitempty"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Message is the outbound wire envelope.
type Message struct {
	Version   int         `json:"v"`
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func NewMessage(eventType string, data interface{}) *Message {
	return &Message{
		Version:   envelopeVersion,
		Type:      eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
}

func (m *Message) encode() ([]byte, error) {
	return json.Marshal(m)
}
