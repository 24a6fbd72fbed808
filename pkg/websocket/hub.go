package websocket

import (
	"context"
	"sync"

	"fundilink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventHandler receives lifecycle and inbound events from the hub's
// dispatcher loop. Handlers run to completion before the next event for this
// process is serviced, so a single process never interleaves mutations of
// the same conversation or session.
type EventHandler interface {
	HandleConnect(client *Client)
	HandleEvent(client *Client, event *Event)
	HandleDisconnect(client *Client, reason string)
}

type inboundEvent struct {
	client *Client
	event  *Event
}

type disconnect struct {
	client *Client
	reason string
}

// Hub multiplexes clients into rooms and fans outbound messages out to them.
// Registration, disconnects, and inbound events all funnel through the Run
// loop; the room maps carry a lock only because broadcasts may also originate
// outside the loop (timers, HTTP handlers, the expiry sweep).
type Hub struct {
	register   chan *Client
	unregister chan disconnect
	inbound    chan inboundEvent
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	handler EventHandler
	logger  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan disconnect),
		inbound:    make(chan inboundEvent, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		logger:     log,
	}
}

// SetEventHandler must be called before Run.
func (h *Hub) SetEventHandler(handler EventHandler) {
	h.handler = handler
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
			if h.handler != nil {
				h.handler.HandleConnect(client)
			}

		case d := <-h.unregister:
			if h.removeClient(d.client) && h.handler != nil {
				h.handler.HandleDisconnect(d.client, d.reason)
			}

		case in := <-h.inbound:
			if h.handler != nil {
				h.handler.HandleEvent(in.client, in.event)
			}

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// Register hands a freshly upgraded client to the dispatcher loop. After the
// loop has exited the client is dropped rather than blocking its goroutine.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Disconnect queues the teardown of a client. Safe to call more than once;
// only the first reaches the handler.
func (h *Hub) Disconnect(client *Client, reason string) {
	select {
	case h.unregister <- disconnect{client: client, reason: reason}:
	case <-h.done:
	}
}

// Inject queues an event for the dispatcher loop on behalf of a client. Used
// by timer callbacks so expiries are serialized with real inbound traffic.
func (h *Hub) Inject(client *Client, event *Event) {
	select {
	case h.inbound <- inboundEvent{client: client, event: event}:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
}

func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return false
	}

	delete(h.clients, client)
	h.closeSendLocked(client)

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	return true
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.closeSendLocked(client)
		delete(h.clients, client)
	}
	h.rooms = make(map[string]map[*Client]bool)
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// JoinUserToRoom subscribes every live connection of a user to a room,
// applied when a conversation gains a participant mid-session.
func (h *Hub) JoinUserToRoom(userID primitive.ObjectID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.UserID != userID {
			continue
		}
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[*Client]bool)
		}
		h.rooms[roomID][client] = true
		client.rooms[roomID] = true
	}
}

// RemoveUserFromRoom drops every connection of a user from a room.
func (h *Hub) RemoveUserFromRoom(userID primitive.ObjectID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	for client := range room {
		if client.UserID == userID {
			delete(room, client)
			delete(client.rooms, roomID)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) SendToClient(client *Client, message *Message) {
	data, err := message.encode()
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode outbound message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(client, data)
}

func (h *Hub) SendToRoom(roomID string, message *Message) {
	h.sendToRoomExcept(roomID, nil, message)
}

// SendToRoomExcept fans out to a room minus one client, used for events the
// originator should not echo back (typing indicators).
func (h *Hub) SendToRoomExcept(roomID string, except *Client, message *Message) {
	h.sendToRoomExcept(roomID, except, message)
}

func (h *Hub) sendToRoomExcept(roomID string, except *Client, message *Message) {
	data, err := message.encode()
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode outbound message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	for client := range room {
		if client == except {
			continue
		}
		h.deliver(client, data)
	}
}

func (h *Hub) SendToUser(userID primitive.ObjectID, message *Message) {
	h.SendToRoom(UserRoom(userID), message)
}

func (h *Hub) BroadcastToAll(message *Message) {
	data, err := message.encode()
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode outbound message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.deliver(client, data)
	}
}

// deliver requires h.mu held for writing. A client with a full send buffer
// gets its send channel closed, which tears the socket down through the
// pumps; the regular unregister path then cleans up room membership and
// fires the disconnect handler.
func (h *Hub) deliver(client *Client, data []byte) {
	if client.closed {
		return
	}
	select {
	case client.send <- data:
	default:
		h.closeSendLocked(client)
	}
}

// closeSendLocked requires h.mu held for writing.
func (h *Hub) closeSendLocked(client *Client) {
	if !client.closed {
		client.closed = true
		close(client.send)
	}
}

// Room naming conventions.
func ConversationRoom(conversationID primitive.ObjectID) string {
	return "conversation_" + conversationID.Hex()
}

func UserRoom(userID primitive.ObjectID) string {
	return "user_" + userID.Hex()
}

const FundisRoom = "fundis"
