package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"fundilink/internal/config"
	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"
	"fundilink/internal/services"
	"fundilink/internal/utils"
	"fundilink/pkg/logger"
	ws "fundilink/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const eventTimeout = 10 * time.Second

// typingExpired is the synthetic event injected when a typing timer fires
// without an explicit typing_stop.
const typingExpired = "_typing_expired"

// Gateway is the root of the realtime layer: it authenticates connection
// attempts, owns the event routing between the hub and the domain services,
// and fans results out to rooms and user channels. It is the only component
// that calls across the chat and tracking engines.
type Gateway struct {
	hub      *ws.Hub
	registry *ws.Registry

	authService     services.AuthService
	chatService     services.ChatService
	trackingService services.TrackingService
	notifications   services.NotificationSink
	userRepo        interfaces.UserRepository

	upgrader gorilla.Upgrader
	wsConfig *config.WebSocketConfig
	logger   *logger.Logger

	// One pending typing timer per (conversation, connection).
	typingMu     sync.Mutex
	typingTimers map[string]*time.Timer
}

func NewGateway(
	hub *ws.Hub,
	registry *ws.Registry,
	authService services.AuthService,
	chatService services.ChatService,
	trackingService services.TrackingService,
	notifications services.NotificationSink,
	userRepo interfaces.UserRepository,
	wsConfig *config.WebSocketConfig,
	log *logger.Logger,
) *Gateway {
	g := &Gateway{
		hub:             hub,
		registry:        registry,
		authService:     authService,
		chatService:     chatService,
		trackingService: trackingService,
		notifications:   notifications,
		userRepo:        userRepo,
		wsConfig:        wsConfig,
		logger:          log,
		typingTimers:    make(map[string]*time.Timer),
		upgrader: gorilla.Upgrader{
			ReadBufferSize:    wsConfig.ReadBufferSize,
			WriteBufferSize:   wsConfig.WriteBufferSize,
			HandshakeTimeout:  wsConfig.HandshakeTimeout,
			EnableCompression: wsConfig.EnableCompression,
			CheckOrigin:       originChecker(wsConfig.AllowedOrigins),
		},
	}

	hub.SetEventHandler(g)

	return g
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = true
	}
	return func(r *http.Request) bool {
		return allowedSet[r.Header.Get("Origin")]
	}
}

// HandleWebSocket authenticates an upgrade request. A failed credential is
// rejected before the upgrade so no connection is ever established for it.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = utils.ExtractBearerToken(c.GetHeader("Authorization"))
	}

	principal, err := g.authService.Authenticate(c.Request.Context(), token)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(g.hub, conn, uuid.NewString(), principal.UserID, string(principal.Role), ws.Options{
		WriteWait:      g.wsConfig.WriteTimeout,
		PongWait:       g.wsConfig.PongTimeout,
		MaxMessageSize: g.wsConfig.MaxMessageSize,
		SendBufferSize: g.wsConfig.SendBufferSize,
	})
	client.OnPong = func() {
		g.registry.Touch(client.ID, time.Now())
	}

	g.hub.Register(client)
	client.Start()
}

// HandleConnect runs on the dispatcher loop after a client is registered.
func (g *Gateway) HandleConnect(client *ws.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	now := time.Now()
	cameOnline := g.registry.Register(&ws.Connection{
		ID:          client.ID,
		UserID:      client.UserID,
		Role:        client.Role,
		Transport:   "websocket",
		ConnectedAt: now,
		LastSeenAt:  now,
	})

	g.hub.JoinRoom(client, ws.UserRoom(client.UserID))
	if client.Role == string(models.UserRoleFundi) {
		g.hub.JoinRoom(client, ws.FundisRoom)
	}

	rooms, err := g.chatService.RoomsFor(ctx, client.UserID)
	if err != nil {
		g.logger.WithError(err).WithUserID(client.UserID).Error("Failed to resolve rooms")
	}
	for _, conversationID := range rooms {
		g.hub.JoinRoom(client, ws.ConversationRoom(conversationID))
	}

	g.hub.SendToClient(client, ws.NewMessage(ws.EventConnected, gin.H{
		"connection_id": client.ID,
		"user_id":       client.UserID.Hex(),
	}))
	g.hub.SendToClient(client, ws.NewMessage(ws.EventOnlineUsers, gin.H{
		"user_ids": hexIDs(g.registry.OnlineUsers()),
	}))

	if cameOnline {
		g.hub.BroadcastToAll(ws.NewMessage(ws.EventUserOnline, gin.H{
			"user_id": client.UserID.Hex(),
		}))
	}

	g.logger.WithUserID(client.UserID).WithConnectionID(client.ID).Info("Client connected")
}

// HandleDisconnect runs on the dispatcher loop after a client is removed.
func (g *Gateway) HandleDisconnect(client *ws.Client, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	g.cancelTypingTimers(client)

	_, wentOffline, ok := g.registry.Unregister(client.ID)
	if !ok {
		return
	}

	if wentOffline {
		if err := g.userRepo.UpdateLastSeen(ctx, client.UserID, time.Now()); err != nil {
			g.logger.WithError(err).WithUserID(client.UserID).Error("Failed to update last seen")
		}

		g.hub.BroadcastToAll(ws.NewMessage(ws.EventUserOffline, gin.H{
			"user_id": client.UserID.Hex(),
			"reason":  reason,
		}))
	}

	g.logger.WithUserID(client.UserID).WithConnectionID(client.ID).
		WithField("reason", reason).Info("Client disconnected")
}

// HandleEvent routes one inbound event to its engine. Errors never escape:
// they become an error event scoped to the originating connection, so other
// room participants observe either the full outcome or nothing.
func (g *Gateway) HandleEvent(client *ws.Client, event *ws.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	switch event.Type {
	case ws.EventSendMessage:
		err = g.handleSendMessage(ctx, client, event.Data)
	case ws.EventMarkMessagesRead:
		err = g.handleMarkRead(ctx, client, event.Data)
	case ws.EventTypingStart:
		err = g.handleTyping(client, event.Data, true)
	case ws.EventTypingStop:
		err = g.handleTyping(client, event.Data, false)
	case typingExpired:
		err = g.handleTypingExpired(client, event.Data)
	case ws.EventLocationUpdate:
		err = g.handleLocationUpdate(ctx, client, event.Data)
	case ws.EventRequestLocationRefresh:
		err = g.handleLocationRefresh(ctx, client, event.Data)
	case ws.EventUpdatePresence:
		err = g.handleUpdatePresence(ctx, client, event.Data)
	default:
		err = errs.InvalidArgumentError("unknown event type")
	}

	if err != nil {
		g.sendError(client, err)
	}
}

func (g *Gateway) sendError(client *ws.Client, err error) {
	message := "internal error"
	var typed errs.Error
	if errors.As(err, &typed) {
		message = typed.Error()
	} else {
		g.logger.WithError(err).WithConnectionID(client.ID).Error("Event handling failed")
	}

	g.hub.SendToClient(client, ws.NewMessage(ws.EventError, gin.H{
		"message": message,
	}))
}

type sendMessagePayload struct {
	ConversationID string              `json:"conversation_id"`
	Content        string              `json:"content"`
	Kind           models.MessageType  `json:"kind,omitempty"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	Location       *models.Location    `json:"location,omitempty"`
}

func (g *Gateway) handleSendMessage(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.InvalidArgumentError("malformed send_message payload")
	}

	conversationID, err := primitive.ObjectIDFromHex(payload.ConversationID)
	if err != nil {
		return errs.InvalidArgumentError("invalid conversation id")
	}

	message, recipientIDs, err := g.chatService.PostMessage(ctx, conversationID, client.UserID, &services.PostMessageInput{
		Content:     payload.Content,
		Type:        payload.Kind,
		Attachments: payload.Attachments,
		Location:    payload.Location,
	})
	if err != nil {
		return err
	}

	g.cancelTypingTimer(client, conversationID)

	g.hub.SendToRoom(ws.ConversationRoom(conversationID), ws.NewMessage(ws.EventNewMessage, gin.H{
		"conversation_id": conversationID.Hex(),
		"message":         message,
	}))

	// The message is durable at this point; a failed notification never
	// unwinds it.
	for _, recipientID := range recipientIDs {
		if g.registry.IsOnline(recipientID) {
			continue
		}
		g.notifications.NotifyOffline(ctx, recipientID, models.NotificationTypeNewMessage,
			"New message", messageBody(message), map[string]interface{}{
				"conversation_id": conversationID.Hex(),
				"message_id":      message.ID.Hex(),
				"sender_id":       message.SenderID.Hex(),
			})
	}

	return nil
}

func messageBody(message *models.Message) string {
	switch message.Type {
	case models.MessageTypeLocation:
		return "Shared a location"
	case models.MessageTypeAttachment:
		return "Sent an attachment"
	default:
		return message.Content
	}
}

type markReadPayload struct {
	ConversationID string   `json:"conversation_id"`
	MessageIDs     []string `json:"message_ids"`
}

func (g *Gateway) handleMarkRead(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var payload markReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.InvalidArgumentError("malformed mark_messages_read payload")
	}

	conversationID, err := primitive.ObjectIDFromHex(payload.ConversationID)
	if err != nil {
		return errs.InvalidArgumentError("invalid conversation id")
	}

	messageIDs := make([]primitive.ObjectID, 0, len(payload.MessageIDs))
	for _, raw := range payload.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return errs.InvalidArgumentError("invalid message id")
		}
		messageIDs = append(messageIDs, id)
	}

	result, err := g.chatService.MarkRead(ctx, conversationID, client.UserID, messageIDs)
	if err != nil {
		return err
	}

	if len(result.MessageIDs) > 0 {
		g.hub.SendToRoom(ws.ConversationRoom(conversationID), ws.NewMessage(ws.EventMessagesRead, gin.H{
			"conversation_id": conversationID.Hex(),
			"message_ids":     hexIDs(result.MessageIDs),
			"read_by":         client.UserID.Hex(),
			"read_at":         result.ReadAt,
		}))
	}

	return nil
}

type typingPayload struct {
	ConversationID string `json:"conversation_id"`
}

func (g *Gateway) handleTyping(client *ws.Client, data json.RawMessage, typing bool) error {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.InvalidArgumentError("malformed typing payload")
	}

	conversationID, err := primitive.ObjectIDFromHex(payload.ConversationID)
	if err != nil {
		return errs.InvalidArgumentError("invalid conversation id")
	}

	if typing {
		g.scheduleTypingExpiry(client, conversationID)
	} else {
		g.cancelTypingTimer(client, conversationID)
	}

	g.hub.SendToRoomExcept(ws.ConversationRoom(conversationID), client, ws.NewMessage(ws.EventUserTyping, gin.H{
		"conversation_id": conversationID.Hex(),
		"user_id":         client.UserID.Hex(),
		"typing":          typing,
	}))

	return nil
}

func (g *Gateway) handleTypingExpired(client *ws.Client, data json.RawMessage) error {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil
	}

	conversationID, err := primitive.ObjectIDFromHex(payload.ConversationID)
	if err != nil {
		return nil
	}

	g.hub.SendToRoomExcept(ws.ConversationRoom(conversationID), client, ws.NewMessage(ws.EventUserTyping, gin.H{
		"conversation_id": conversationID.Hex(),
		"user_id":         client.UserID.Hex(),
		"typing":          false,
	}))

	return nil
}

func typingKey(client *ws.Client, conversationID primitive.ObjectID) string {
	return conversationID.Hex() + ":" + client.ID
}

// scheduleTypingExpiry arms the auto "stopped typing" broadcast. Each
// keystroke event reschedules it, so at most one timer exists per
// (conversation, connection) pair.
func (g *Gateway) scheduleTypingExpiry(client *ws.Client, conversationID primitive.ObjectID) {
	key := typingKey(client, conversationID)

	g.typingMu.Lock()
	defer g.typingMu.Unlock()

	if timer, ok := g.typingTimers[key]; ok {
		timer.Stop()
	}

	g.typingTimers[key] = time.AfterFunc(utils.TypingIndicatorExpiry, func() {
		g.typingMu.Lock()
		delete(g.typingTimers, key)
		g.typingMu.Unlock()

		data, _ := json.Marshal(typingPayload{ConversationID: conversationID.Hex()})
		g.hub.Inject(client, &ws.Event{Type: typingExpired, Data: data})
	})
}

func (g *Gateway) cancelTypingTimer(client *ws.Client, conversationID primitive.ObjectID) {
	key := typingKey(client, conversationID)

	g.typingMu.Lock()
	defer g.typingMu.Unlock()

	if timer, ok := g.typingTimers[key]; ok {
		timer.Stop()
		delete(g.typingTimers, key)
	}
}

func (g *Gateway) cancelTypingTimers(client *ws.Client) {
	suffix := ":" + client.ID

	g.typingMu.Lock()
	defer g.typingMu.Unlock()

	for key, timer := range g.typingTimers {
		if strings.HasSuffix(key, suffix) {
			timer.Stop()
			delete(g.typingTimers, key)
		}
	}
}

type locationUpdatePayload struct {
	SessionID string                `json:"session_id"`
	Sample    models.LocationSample `json:"sample"`
}

func (g *Gateway) handleLocationUpdate(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	if client.Role != string(models.UserRoleFundi) {
		return errs.PermissionDeniedError("only fundis report location")
	}

	var payload locationUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.InvalidArgumentError("malformed location_update payload")
	}

	sessionID, err := primitive.ObjectIDFromHex(payload.SessionID)
	if err != nil {
		return errs.InvalidArgumentError("invalid session id")
	}

	result, err := g.trackingService.AddSample(ctx, sessionID, client.UserID, payload.Sample)
	if err != nil {
		return err
	}

	session := result.Session
	g.broadcastLocationUpdate(session)

	if result.ArrivalJustDetected {
		arrival := ws.NewMessage(ws.EventFundiArrived, gin.H{
			"session_id":   session.ID.Hex(),
			"booking_id":   session.BookingID.Hex(),
			"arrival_time": session.ArrivalTime,
		})
		g.hub.SendToUser(session.ClientID, arrival)
		g.hub.SendToUser(session.FundiID, arrival)

		if !g.registry.IsOnline(session.ClientID) {
			g.notifications.NotifyOffline(ctx, session.ClientID, models.NotificationTypeFundiArrived,
				"Your fundi has arrived", "", map[string]interface{}{
					"session_id": session.ID.Hex(),
					"booking_id": session.BookingID.Hex(),
				})
		}
	}

	return nil
}

// broadcastLocationUpdate sends the newest position to the observing client,
// masked when the session does not share precise location.
func (g *Gateway) broadcastLocationUpdate(session *models.TrackingSession) {
	sample := session.CurrentSample()
	if sample == nil {
		return
	}

	latitude, longitude := sample.Latitude, sample.Longitude
	if !session.Settings.SharePreciseLocation {
		latitude = utils.MaskCoordinate(latitude)
		longitude = utils.MaskCoordinate(longitude)
	}

	payload := gin.H{
		"session_id": session.ID.Hex(),
		"location": gin.H{
			"latitude":    latitude,
			"longitude":   longitude,
			"heading":     sample.Heading,
			"speed_mps":   sample.SpeedMPS,
			"recorded_at": sample.RecordedAt,
		},
		"status": session.Status,
	}
	if eta, ok := session.ETASeconds(); ok {
		payload["eta_seconds"] = eta
	}
	if distance, ok := session.DistanceToTargetMeters(); ok {
		payload["distance_meters"] = distance
	}

	g.hub.SendToUser(session.ClientID, ws.NewMessage(ws.EventLocationUpdated, payload))
}

type locationRefreshPayload struct {
	SessionID string `json:"session_id"`
}

func (g *Gateway) handleLocationRefresh(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var payload locationRefreshPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.InvalidArgumentError("malformed request_location_refresh payload")
	}

	sessionID, err := primitive.ObjectIDFromHex(payload.SessionID)
	if err != nil {
		return errs.InvalidArgumentError("invalid session id")
	}

	principal := &services.Principal{UserID: client.UserID, Role: models.UserRole(client.Role)}
	view, err := g.trackingService.GetSession(ctx, sessionID, principal)
	if err != nil {
		return err
	}

	g.hub.SendToUser(view.Session.FundiID, ws.NewMessage(ws.EventLocationRefreshRequested, gin.H{
		"session_id":   sessionID.Hex(),
		"requested_by": client.UserID.Hex(),
	}))

	return nil
}

type updatePresencePayload struct {
	Status       models.PresenceStatus `json:"status"`
	CustomStatus string                `json:"custom_status,omitempty"`
}

func (g *Gateway) handleUpdatePresence(ctx context.Context, client *ws.Client, data json.RawMessage) error {
	var payload updatePresencePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errs.InvalidArgumentError("malformed update_presence payload")
	}

	if !payload.Status.IsValid() {
		return errs.InvalidArgumentError("unknown presence status")
	}

	if err := g.userRepo.UpdatePresence(ctx, client.UserID, payload.Status, payload.CustomStatus); err != nil {
		return err
	}

	g.hub.BroadcastToAll(ws.NewMessage(ws.EventPresenceUpdated, gin.H{
		"user_id":       client.UserID.Hex(),
		"status":        payload.Status,
		"custom_status": payload.CustomStatus,
	}))

	return nil
}

// JoinConversation subscribes a user's live connections to a conversation
// room, invoked when a conversation gains a participant.
func (g *Gateway) JoinConversation(userID, conversationID primitive.ObjectID) {
	g.hub.JoinUserToRoom(userID, ws.ConversationRoom(conversationID))
}

// LeaveConversation removes a user's live connections from a conversation
// room when the participant leaves or the conversation closes.
func (g *Gateway) LeaveConversation(userID, conversationID primitive.ObjectID) {
	g.hub.RemoveUserFromRoom(userID, ws.ConversationRoom(conversationID))
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
