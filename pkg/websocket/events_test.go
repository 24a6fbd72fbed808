package websocket

import (
	"encoding/json"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMessageEnvelope(t *testing.T) {
	msg := NewMessage(EventNewMessage, map[string]string{"content": "habari"})

	raw, err := msg.encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded struct {
		Version   int               `json:"v"`
		Type      string            `json:"type"`
		Timestamp int64             `json:"timestamp"`
		Data      map[string]string `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Version != envelopeVersion {
		t.Errorf("version = %d, want %d", decoded.Version, envelopeVersion)
	}
	if decoded.Type != EventNewMessage {
		t.Errorf("type = %q, want %q", decoded.Type, EventNewMessage)
	}
	if decoded.Timestamp == 0 {
		t.Error("timestamp not set")
	}
	if decoded.Data["content"] != "habari" {
		t.Errorf("data = %v, payload lost", decoded.Data)
	}
}

func TestRoomNames(t *testing.T) {
	id := primitive.NewObjectID()

	if got := ConversationRoom(id); got != "conversation_"+id.Hex() {
		t.Errorf("ConversationRoom = %q", got)
	}
	if got := UserRoom(id); got != "user_"+id.Hex() {
		t.Errorf("UserRoom = %q", got)
	}
	if ConversationRoom(id) == UserRoom(id) {
		t.Error("room namespaces collide")
	}
}
