package websocket

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestConnection(id string, userID primitive.ObjectID) *Connection {
	now := time.Now()
	return &Connection{
		ID:          id,
		UserID:      userID,
		Role:        "client",
		Transport:   "websocket",
		ConnectedAt: now,
		LastSeenAt:  now,
	}
}

func TestRegistryMultiDevicePresence(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()

	if cameOnline := registry.Register(newTestConnection("phone", userID)); !cameOnline {
		t.Error("first connection did not bring the user online")
	}
	if cameOnline := registry.Register(newTestConnection("laptop", userID)); cameOnline {
		t.Error("second connection reported cameOnline again")
	}
	if !registry.IsOnline(userID) {
		t.Fatal("user not online with two connections")
	}
	if got := registry.ConnectionCount(); got != 2 {
		t.Errorf("ConnectionCount = %d, want 2", got)
	}

	// Dropping one device keeps the user online.
	gotUser, wentOffline, ok := registry.Unregister("phone")
	if !ok {
		t.Fatal("Unregister of a live connection reported unknown")
	}
	if gotUser != userID {
		t.Errorf("Unregister returned user %s, want %s", gotUser.Hex(), userID.Hex())
	}
	if wentOffline {
		t.Error("user went offline while the laptop is still connected")
	}
	if !registry.IsOnline(userID) {
		t.Error("user offline with one connection remaining")
	}

	// The last device going away flips presence exactly once.
	_, wentOffline, ok = registry.Unregister("laptop")
	if !ok || !wentOffline {
		t.Errorf("last Unregister = (wentOffline=%v, ok=%v), want both true", wentOffline, ok)
	}
	if registry.IsOnline(userID) {
		t.Error("user still online after last connection closed")
	}
}

func TestRegistryUnregisterUnknown(t *testing.T) {
	registry := NewRegistry()

	userID, wentOffline, ok := registry.Unregister("no-such-connection")
	if ok || wentOffline {
		t.Errorf("Unregister unknown = (wentOffline=%v, ok=%v), want both false", wentOffline, ok)
	}
	if !userID.IsZero() {
		t.Errorf("Unregister unknown returned user %s, want zero", userID.Hex())
	}

	// A double unregister of a once-valid connection is equally harmless.
	uid := primitive.NewObjectID()
	registry.Register(newTestConnection("c1", uid))
	registry.Unregister("c1")
	if _, _, ok := registry.Unregister("c1"); ok {
		t.Error("second Unregister of the same connection reported ok")
	}
}

func TestRegistryOnlineUsersAndConnectionsOf(t *testing.T) {
	registry := NewRegistry()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	registry.Register(newTestConnection("a", u1))
	registry.Register(newTestConnection("b", u1))
	registry.Register(newTestConnection("c", u2))

	online := registry.OnlineUsers()
	if len(online) != 2 {
		t.Fatalf("OnlineUsers = %d users, want 2", len(online))
	}

	conns := registry.ConnectionsOf(u1)
	if len(conns) != 2 {
		t.Errorf("ConnectionsOf(u1) = %v, want both device ids", conns)
	}
	if got := registry.ConnectionsOf(primitive.NewObjectID()); len(got) != 0 {
		t.Errorf("ConnectionsOf(stranger) = %v, want empty", got)
	}
}

func TestRegistryTouch(t *testing.T) {
	registry := NewRegistry()
	userID := primitive.NewObjectID()

	conn := newTestConnection("c1", userID)
	conn.LastSeenAt = time.Now().Add(-time.Minute)
	registry.Register(conn)

	seen := time.Now()
	registry.Touch("c1", seen)
	if !conn.LastSeenAt.Equal(seen) {
		t.Errorf("LastSeenAt = %v, want %v", conn.LastSeenAt, seen)
	}

	// Touching a gone connection is a no-op.
	registry.Touch("gone", time.Now())
}
