package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fundilink/internal/config"
	"fundilink/internal/models"
	"fundilink/internal/services"
	"fundilink/internal/utils"
	"fundilink/pkg/logger"
	ws "fundilink/pkg/websocket"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeAuthService struct {
	principals map[string]*services.Principal
}

func (f *fakeAuthService) Authenticate(ctx context.Context, token string) (*services.Principal, error) {
	if p, ok := f.principals[token]; ok {
		return p, nil
	}
	return nil, errs.UnauthenticatedError("invalid token")
}

// fakeChatService only resolves room membership; the chat engine itself is
// covered by its own tests.
type fakeChatService struct {
	rooms map[primitive.ObjectID][]primitive.ObjectID
}

func (f *fakeChatService) CreateConversation(ctx context.Context, bookingID *primitive.ObjectID, kind models.ConversationKind, participants []models.Participant) (*models.Conversation, error) {
	return nil, errs.InvalidArgumentError("not supported")
}

func (f *fakeChatService) GetConversation(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.Conversation, error) {
	return nil, errs.NotFoundError("conversation not found")
}

func (f *fakeChatService) GetConversations(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Conversation, int64, error) {
	return nil, 0, nil
}

func (f *fakeChatService) CloseConversation(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	return errs.NotFoundError("conversation not found")
}

func (f *fakeChatService) AddParticipant(ctx context.Context, conversationID, callerID primitive.ObjectID, participant models.Participant) error {
	return errs.NotFoundError("conversation not found")
}

func (f *fakeChatService) RemoveParticipant(ctx context.Context, conversationID, callerID, userID primitive.ObjectID) error {
	return errs.NotFoundError("conversation not found")
}

func (f *fakeChatService) SetRoomMembership(rooms services.RoomMembership) {}

func (f *fakeChatService) RoomsFor(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return f.rooms[userID], nil
}

func (f *fakeChatService) PostMessage(ctx context.Context, conversationID, senderID primitive.ObjectID, input *services.PostMessageInput) (*models.Message, []primitive.ObjectID, error) {
	return nil, nil, errs.NotFoundError("conversation not found")
}

func (f *fakeChatService) MarkRead(ctx context.Context, conversationID, userID primitive.ObjectID, messageIDs []primitive.ObjectID) (*services.MarkReadResult, error) {
	return nil, errs.NotFoundError("conversation not found")
}

func (f *fakeChatService) GetMessages(ctx context.Context, conversationID, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	return nil, 0, nil
}

func (f *fakeChatService) DeleteMessage(ctx context.Context, conversationID, messageID, userID primitive.ObjectID) error {
	return errs.NotFoundError("message not found")
}

type fakeUserStore struct{}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return nil, errs.NotFoundError("user not found")
}

func (f *fakeUserStore) UpdateLastSeen(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return nil
}

func (f *fakeUserStore) UpdatePresence(ctx context.Context, id primitive.ObjectID, status models.PresenceStatus, customStatus string) error {
	return nil
}

type gatewayFixture struct {
	gw  *Gateway
	url string
}

func newGatewayFixture(t *testing.T, auth *fakeAuthService, chat *fakeChatService) *gatewayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Format: "text"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	hub := ws.NewHub(log)
	registry := ws.NewRegistry()
	wsConfig := &config.WebSocketConfig{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: time.Second,
		PongTimeout:      30 * time.Second,
		WriteTimeout:     time.Second,
		MaxMessageSize:   64 * 1024,
		SendBufferSize:   32,
		AllowedOrigins:   []string{"*"},
	}
	gw := NewGateway(hub, registry, auth, chat, nil, nil, &fakeUserStore{}, wsConfig, log)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", gw.HandleWebSocket)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &gatewayFixture{
		gw:  gw,
		url: "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func dialGateway(t *testing.T, fx *gatewayFixture, token string) *gorilla.Conn {
	t.Helper()
	conn, _, err := gorilla.DefaultDialer.Dial(fx.url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type outboundEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// waitForEvent reads frames until one of the wanted type arrives, skipping
// unrelated presence traffic.
func waitForEvent(t *testing.T, conn *gorilla.Conn, eventType string, timeout time.Duration) *outboundEnvelope {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		conn.SetReadDeadline(deadline)
		var envelope outboundEnvelope
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		if envelope.Type == eventType {
			return &envelope
		}
	}
}

type typingNotice struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

func waitForTyping(t *testing.T, conn *gorilla.Conn, typing bool, timeout time.Duration) *typingNotice {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		envelope := waitForEvent(t, conn, ws.EventUserTyping, time.Until(deadline))
		var notice typingNotice
		if err := json.Unmarshal(envelope.Data, &notice); err != nil {
			t.Fatalf("decoding typing notice: %v", err)
		}
		if notice.Typing == typing {
			return &notice
		}
	}
}

func (fx *gatewayFixture) typingTimerCount() int {
	fx.gw.typingMu.Lock()
	defer fx.gw.typingMu.Unlock()
	return len(fx.gw.typingTimers)
}

func TestWebSocketRejectsBadCredential(t *testing.T) {
	fx := newGatewayFixture(t, &fakeAuthService{}, &fakeChatService{})

	_, resp, err := gorilla.DefaultDialer.Dial(fx.url+"?token=zzz", nil)
	if err == nil {
		t.Fatal("dial succeeded with a bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake response = %v, want 401", resp)
	}
	resp.Body.Close()
}

func TestTypingAutoStop(t *testing.T) {
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	conversationID := primitive.NewObjectID()

	auth := &fakeAuthService{principals: map[string]*services.Principal{
		"amina": {UserID: u1, Role: models.UserRoleClient},
		"juma":  {UserID: u2, Role: models.UserRoleFundi},
	}}
	chat := &fakeChatService{rooms: map[primitive.ObjectID][]primitive.ObjectID{
		u1: {conversationID},
		u2: {conversationID},
	}}
	fx := newGatewayFixture(t, auth, chat)

	amina := dialGateway(t, fx, "amina")
	juma := dialGateway(t, fx, "juma")
	waitForEvent(t, amina, ws.EventConnected, time.Second)
	waitForEvent(t, juma, ws.EventConnected, time.Second)

	payload, _ := json.Marshal(map[string]string{"conversation_id": conversationID.Hex()})
	start := &ws.Event{Type: ws.EventTypingStart, Data: payload}

	// Two keystroke events in a row reschedule the same timer.
	if err := amina.WriteJSON(start); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	waitForTyping(t, juma, true, time.Second)
	if err := amina.WriteJSON(start); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	waitForTyping(t, juma, true, time.Second)

	if got := fx.typingTimerCount(); got != 1 {
		t.Fatalf("typing timers = %d, want one per (conversation, connection)", got)
	}

	notice := waitForTyping(t, juma, false, utils.TypingIndicatorExpiry+2*time.Second)
	if notice.UserID != u1.Hex() || notice.ConversationID != conversationID.Hex() {
		t.Errorf("auto stop notice = %+v, want the typer and conversation", notice)
	}
	if got := fx.typingTimerCount(); got != 0 {
		t.Errorf("typing timers after expiry = %d, want none left to fire again", got)
	}
}

func TestTypingStopCancelsTimer(t *testing.T) {
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	conversationID := primitive.NewObjectID()

	auth := &fakeAuthService{principals: map[string]*services.Principal{
		"amina": {UserID: u1, Role: models.UserRoleClient},
		"juma":  {UserID: u2, Role: models.UserRoleFundi},
	}}
	chat := &fakeChatService{rooms: map[primitive.ObjectID][]primitive.ObjectID{
		u1: {conversationID},
		u2: {conversationID},
	}}
	fx := newGatewayFixture(t, auth, chat)

	amina := dialGateway(t, fx, "amina")
	juma := dialGateway(t, fx, "juma")
	waitForEvent(t, amina, ws.EventConnected, time.Second)
	waitForEvent(t, juma, ws.EventConnected, time.Second)

	payload, _ := json.Marshal(map[string]string{"conversation_id": conversationID.Hex()})
	if err := amina.WriteJSON(&ws.Event{Type: ws.EventTypingStart, Data: payload}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	waitForTyping(t, juma, true, time.Second)

	if err := amina.WriteJSON(&ws.Event{Type: ws.EventTypingStop, Data: payload}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	waitForTyping(t, juma, false, time.Second)

	if got := fx.typingTimerCount(); got != 0 {
		t.Errorf("typing timers after explicit stop = %d, want 0", got)
	}
}
