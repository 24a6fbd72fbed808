package websocket

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Connection is the ephemeral record of one live socket. Created on
// successful authentication, destroyed on disconnect.
type Connection struct {
	ID          string
	UserID      primitive.ObjectID
	Role        string
	Transport   string
	ConnectedAt time.Time
	LastSeenAt  time.Time
}

// Registry owns the user-to-connections mapping and nothing else. It is
// injected into the gateway at construction so online state is queryable and
// testable without a running hub.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	byUser      map[primitive.ObjectID]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[primitive.ObjectID]map[string]struct{}),
	}
}

// Register records a connection. cameOnline is true when this is the user's
// first live connection.
func (r *Registry) Register(conn *Connection) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID] = conn

	set, ok := r.byUser[conn.UserID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[conn.UserID] = set
	}
	cameOnline = len(set) == 0
	set[conn.ID] = struct{}{}

	return cameOnline
}

// Unregister removes a connection. wentOffline is true when the user's
// connection set became empty. Unregistering an unknown id is a no-op.
func (r *Registry) Unregister(connectionID string) (userID primitive.ObjectID, wentOffline bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return primitive.NilObjectID, false, false
	}

	delete(r.connections, connectionID)

	set := r.byUser[conn.UserID]
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.byUser, conn.UserID)
		wentOffline = true
	}

	return conn.UserID, wentOffline, true
}

func (r *Registry) IsOnline(userID primitive.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser[userID]) > 0
}

func (r *Registry) ConnectionsOf(userID primitive.ObjectID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) OnlineUsers() []primitive.ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]primitive.ObjectID, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	return users
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}

func (r *Registry) Touch(connectionID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.connections[connectionID]; ok {
		conn.LastSeenAt = at
	}
}
