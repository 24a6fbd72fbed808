package websocket

import (
	"context"
	"testing"
	"time"

	"fundilink/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newHubLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return log
}

func newUnstartedClient(hub *Hub, id string, userID primitive.ObjectID) *Client {
	return NewClient(hub, nil, id, userID, "client", Options{SendBufferSize: 8})
}

func TestHubRoomMembership(t *testing.T) {
	hub := NewHub(newHubLogger(t))
	userID := primitive.NewObjectID()
	conversationID := primitive.NewObjectID()
	room := ConversationRoom(conversationID)

	c1 := newUnstartedClient(hub, "phone", userID)
	c2 := newUnstartedClient(hub, "laptop", userID)
	hub.addClient(c1)
	hub.addClient(c2)

	hub.JoinUserToRoom(userID, room)
	if len(hub.rooms[room]) != 2 {
		t.Fatalf("room size = %d, want both connections subscribed", len(hub.rooms[room]))
	}

	hub.RemoveUserFromRoom(userID, room)
	if _, exists := hub.rooms[room]; exists {
		t.Error("empty room not removed")
	}
}

func TestHubIngressAfterShutdown(t *testing.T) {
	hub := NewHub(newHubLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("dispatcher loop did not stop")
	}

	// None of these may block once the loop is gone.
	done := make(chan struct{})
	go func() {
		client := newUnstartedClient(hub, "late", primitive.NewObjectID())
		hub.Register(client)
		hub.Inject(client, &Event{Type: "noop"})
		hub.Disconnect(client, "late teardown")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub ingress blocked after shutdown")
	}
}
