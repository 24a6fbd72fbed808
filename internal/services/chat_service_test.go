package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"fundilink/internal/models"
	"fundilink/internal/utils"

	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeConversationRepo mirrors the store's write semantics in memory:
// AppendMessage bumps recipient unread counters, AddReadReceipts skips
// users already present.
type fakeConversationRepo struct {
	conversations map[primitive.ObjectID]*models.Conversation
	messages      map[primitive.ObjectID]*models.Message
	order         []primitive.ObjectID
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[primitive.ObjectID]*models.Conversation),
		messages:      make(map[primitive.ObjectID]*models.Message),
	}
}

func (f *fakeConversationRepo) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	conversation.ID = primitive.NewObjectID()
	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *fakeConversationRepo) GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	c, ok := f.conversations[id]
	if !ok {
		return nil, errs.NotFoundError("conversation not found")
	}
	clone := *c
	clone.Participants = append([]models.Participant(nil), c.Participants...)
	return &clone, nil
}

func (f *fakeConversationRepo) GetConversationsByParticipant(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Conversation, int64, error) {
	var out []*models.Conversation
	for _, c := range f.conversations {
		if c.IsActiveParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversationRepo) CloseConversation(ctx context.Context, id primitive.ObjectID) error {
	c, ok := f.conversations[id]
	if !ok {
		return errs.NotFoundError("conversation not found")
	}
	now := time.Now()
	c.Status = models.ConversationStatusClosed
	c.ClosedAt = &now
	return nil
}

func (f *fakeConversationRepo) GetConversationIDsByParticipant(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	var ids []primitive.ObjectID
	for _, c := range f.conversations {
		if c.Status == models.ConversationStatusActive && c.IsActiveParticipant(userID) {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (f *fakeConversationRepo) AddParticipant(ctx context.Context, conversationID primitive.ObjectID, participant models.Participant) error {
	c, ok := f.conversations[conversationID]
	if !ok {
		return errs.NotFoundError("conversation not found")
	}
	c.Participants = append(c.Participants, participant)
	return nil
}

func (f *fakeConversationRepo) DeactivateParticipant(ctx context.Context, conversationID, userID primitive.ObjectID, leftAt time.Time) error {
	c, ok := f.conversations[conversationID]
	if !ok {
		return errs.NotFoundError("conversation not found")
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			c.Participants[i].IsActive = false
			c.Participants[i].LeftAt = &leftAt
		}
	}
	return nil
}

func (f *fakeConversationRepo) AppendMessage(ctx context.Context, message *models.Message, recipientIDs []primitive.ObjectID) error {
	c, ok := f.conversations[message.ConversationID]
	if !ok {
		return errs.NotFoundError("conversation not found")
	}

	message.ID = primitive.NewObjectID()
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now
	f.messages[message.ID] = message
	f.order = append(f.order, message.ID)

	recipients := make(map[primitive.ObjectID]bool, len(recipientIDs))
	for _, id := range recipientIDs {
		recipients[id] = true
	}
	for i := range c.Participants {
		if recipients[c.Participants[i].UserID] {
			c.Participants[i].UnreadCount++
		}
		if c.Participants[i].UserID == message.SenderID {
			c.Participants[i].UnreadCount = 0
		}
	}
	c.LastMessage = &models.MessageSummary{
		MessageID: message.ID,
		SenderID:  message.SenderID,
		Type:      message.Type,
		Preview:   message.Content,
		SentAt:    now,
	}
	c.UpdatedAt = now
	return nil
}

func (f *fakeConversationRepo) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	m, ok := f.messages[id]
	if !ok || m.DeletedAt != nil {
		return nil, errs.NotFoundError("message not found")
	}
	clone := *m
	return &clone, nil
}

func (f *fakeConversationRepo) GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	var out []*models.Message
	for _, id := range f.order {
		m := f.messages[id]
		if m.ConversationID == conversationID && m.DeletedAt == nil {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeConversationRepo) GetMessagesByIDs(ctx context.Context, conversationID primitive.ObjectID, ids []primitive.ObjectID) ([]*models.Message, error) {
	var out []*models.Message
	for _, id := range ids {
		m, ok := f.messages[id]
		if ok && m.ConversationID == conversationID && m.DeletedAt == nil {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) AddReadReceipts(ctx context.Context, conversationID, userID primitive.ObjectID, messageIDs []primitive.ObjectID, readAt time.Time) error {
	for _, id := range messageIDs {
		m, ok := f.messages[id]
		if !ok || m.IsReadBy(userID) {
			continue
		}
		m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: readAt})
	}
	return nil
}

func (f *fakeConversationRepo) MarkMessagesStatusRead(ctx context.Context, messageIDs []primitive.ObjectID) error {
	for _, id := range messageIDs {
		if m, ok := f.messages[id]; ok {
			m.Status = models.MessageStatusRead
		}
	}
	return nil
}

func (f *fakeConversationRepo) ResetUnreadCount(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	c, ok := f.conversations[conversationID]
	if !ok {
		return errs.NotFoundError("conversation not found")
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			c.Participants[i].UnreadCount = 0
		}
	}
	return nil
}

func (f *fakeConversationRepo) SoftDeleteMessage(ctx context.Context, id primitive.ObjectID) error {
	m, ok := f.messages[id]
	if !ok {
		return errs.NotFoundError("message not found")
	}
	now := time.Now()
	m.DeletedAt = &now
	return nil
}

func newChatFixture(t *testing.T) (ChatService, *fakeConversationRepo) {
	t.Helper()
	repo := newFakeConversationRepo()
	svc := NewChatService(repo, testLogger(t))
	return svc, repo
}

func newDirectConversation(t *testing.T, svc ChatService, u1, u2 primitive.ObjectID) *models.Conversation {
	t.Helper()
	conversation, err := svc.CreateConversation(context.Background(), nil, models.ConversationKindDirect, []models.Participant{
		{UserID: u1, Role: models.UserRoleClient},
		{UserID: u2, Role: models.UserRoleFundi},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return conversation
}

func unreadOf(t *testing.T, repo *fakeConversationRepo, conversationID, userID primitive.ObjectID) int {
	t.Helper()
	c := repo.conversations[conversationID]
	p := c.FindParticipant(userID)
	if p == nil {
		t.Fatalf("participant %s not found", userID.Hex())
	}
	return p.UnreadCount
}

func TestPostMessageUpdatesUnreadAndSummary(t *testing.T) {
	svc, repo := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	message, recipients, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "karibu, niko njiani"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	if len(recipients) != 1 || recipients[0] != u2 {
		t.Errorf("recipients = %v, want just the other participant", recipients)
	}
	if message.Status != models.MessageStatusDelivered {
		t.Errorf("Status = %v, want delivered", message.Status)
	}
	if !message.IsDeliveredTo(u1) || !message.IsDeliveredTo(u2) {
		t.Error("delivery snapshot missing a participant")
	}
	if !message.IsReadBy(u1) || message.IsReadBy(u2) {
		t.Error("readBy should start as the sender alone")
	}

	if got := unreadOf(t, repo, conversation.ID, u2); got != 1 {
		t.Errorf("recipient unread = %d, want 1", got)
	}
	if got := unreadOf(t, repo, conversation.ID, u1); got != 0 {
		t.Errorf("sender unread = %d, want 0", got)
	}

	stored := repo.conversations[conversation.ID]
	if stored.LastMessage == nil || stored.LastMessage.MessageID != message.ID {
		t.Error("last message summary not updated")
	}
}

func TestPostMessageValidation(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	tt := []struct {
		name     string
		sender   primitive.ObjectID
		input    *PostMessageInput
		wantKind errs.Kind
	}{
		{
			name:     "empty content",
			sender:   u1,
			input:    &PostMessageInput{Content: ""},
			wantKind: errs.KindInvalidArgument,
		},
		{
			name:     "content too long",
			sender:   u1,
			input:    &PostMessageInput{Content: strings.Repeat("a", utils.MaxMessageLength+1)},
			wantKind: errs.KindInvalidArgument,
		},
		{
			name:     "attachment without files",
			sender:   u1,
			input:    &PostMessageInput{Type: models.MessageTypeAttachment},
			wantKind: errs.KindInvalidArgument,
		},
		{
			name:     "unknown type",
			sender:   u1,
			input:    &PostMessageInput{Type: "sticker", Content: "hi"},
			wantKind: errs.KindInvalidArgument,
		},
		{
			name:     "outsider sender",
			sender:   primitive.NewObjectID(),
			input:    &PostMessageInput{Content: "hello"},
			wantKind: errs.KindPermissionDenied,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.PostMessage(ctx, conversation.ID, tc.sender, tc.input)
			if errKind(err) != tc.wantKind {
				t.Errorf("PostMessage error = %v, want kind %v", err, tc.wantKind)
			}
		})
	}
}

func TestPostMessageClosedConversation(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)
	if err := svc.CloseConversation(ctx, conversation.ID, u1); err != nil {
		t.Fatalf("CloseConversation: %v", err)
	}

	_, _, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "hello"})
	if errKind(err) != errs.KindConflict {
		t.Errorf("PostMessage on closed conversation error = %v, want conflict", err)
	}
}

func TestPostMessageNoActiveRecipients(t *testing.T) {
	svc, repo := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)
	if err := repo.DeactivateParticipant(ctx, conversation.ID, u2, time.Now()); err != nil {
		t.Fatalf("DeactivateParticipant: %v", err)
	}

	message, recipients, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "bado uko?"})
	if err != nil {
		t.Fatalf("PostMessage with no active recipients: %v", err)
	}
	if len(recipients) != 0 {
		t.Errorf("recipients = %v, want none", recipients)
	}
	if len(message.DeliveredTo) != 1 || message.DeliveredTo[0].UserID != u1 {
		t.Errorf("delivery snapshot = %v, want the sender alone", message.DeliveredTo)
	}

	stored := repo.conversations[conversation.ID]
	if stored.LastMessage == nil || stored.LastMessage.MessageID != message.ID {
		t.Error("last message summary not updated")
	}
	if got := unreadOf(t, repo, conversation.ID, u2); got != 0 {
		t.Errorf("inactive participant unread = %d, want 0", got)
	}
}

func TestMarkReadFlowAndIdempotence(t *testing.T) {
	svc, repo := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	message, _, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "umefika?"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	result, err := svc.MarkRead(ctx, conversation.ID, u2, []primitive.ObjectID{message.ID})
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if len(result.MessageIDs) != 1 || result.MessageIDs[0] != message.ID {
		t.Errorf("MessageIDs = %v, want the one new receipt", result.MessageIDs)
	}

	stored := repo.messages[message.ID]
	if !stored.IsReadBy(u2) {
		t.Error("read receipt not recorded")
	}
	if stored.Status != models.MessageStatusRead {
		t.Errorf("Status = %v, want read after first foreign reader", stored.Status)
	}
	if got := unreadOf(t, repo, conversation.ID, u2); got != 0 {
		t.Errorf("unread after MarkRead = %d, want 0", got)
	}
	firstReadAt := readAtOf(stored, u2)

	// Marking the same message again changes nothing and reports nothing.
	result, err = svc.MarkRead(ctx, conversation.ID, u2, []primitive.ObjectID{message.ID})
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if len(result.MessageIDs) != 0 {
		t.Errorf("second MarkRead reported %v, want no changes", result.MessageIDs)
	}
	if got := readAtOf(repo.messages[message.ID], u2); !got.Equal(firstReadAt) {
		t.Errorf("read timestamp moved on re-mark: %v -> %v", firstReadAt, got)
	}
}

func readAtOf(message *models.Message, userID primitive.ObjectID) time.Time {
	for _, r := range message.ReadBy {
		if r.UserID == userID {
			return r.ReadAt
		}
	}
	return time.Time{}
}

func TestMarkReadRequiresDelivery(t *testing.T) {
	svc, repo := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	u3 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	message, _, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "hello"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	// u3 joins after the message was appended: not in the delivery snapshot.
	if err := repo.AddParticipant(ctx, conversation.ID, models.Participant{
		UserID:   u3,
		Role:     models.UserRoleClient,
		IsActive: true,
		JoinedAt: time.Now(),
	}); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}

	result, err := svc.MarkRead(ctx, conversation.ID, u3, []primitive.ObjectID{message.ID})
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if len(result.MessageIDs) != 0 {
		t.Errorf("MarkRead by undelivered reader reported %v, want nothing", result.MessageIDs)
	}
	if repo.messages[message.ID].IsReadBy(u3) {
		t.Error("reader outside the delivery snapshot gained a read receipt")
	}
}

func TestDeliverySnapshotExcludesLaterJoiners(t *testing.T) {
	svc, repo := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	u3 := primitive.NewObjectID()

	conversation, err := svc.CreateConversation(ctx, nil, models.ConversationKindGroup, []models.Participant{
		{UserID: u1, Role: models.UserRoleClient},
		{UserID: u2, Role: models.UserRoleFundi},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	first, _, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "before"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	if err := repo.AddParticipant(ctx, conversation.ID, models.Participant{
		UserID:   u3,
		Role:     models.UserRoleClient,
		IsActive: true,
		JoinedAt: time.Now(),
	}); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}

	second, recipients, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "after"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	if first.IsDeliveredTo(u3) {
		t.Error("earlier message delivered to a later joiner")
	}
	if !second.IsDeliveredTo(u3) {
		t.Error("later message not delivered to the new participant")
	}
	if len(recipients) != 2 {
		t.Errorf("recipients = %v, want both non-senders", recipients)
	}
}

func TestMarkReadRejectsOutsider(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	message, _, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "hello"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	_, err = svc.MarkRead(ctx, conversation.ID, primitive.NewObjectID(), []primitive.ObjectID{message.ID})
	if errKind(err) != errs.KindPermissionDenied {
		t.Errorf("MarkRead by outsider error = %v, want permission denied", err)
	}

	_, err = svc.MarkRead(ctx, conversation.ID, u2, nil)
	if errKind(err) != errs.KindInvalidArgument {
		t.Errorf("MarkRead with no ids error = %v, want invalid argument", err)
	}
}

func TestCreateConversationValidation(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()

	_, err := svc.CreateConversation(ctx, nil, models.ConversationKindDirect, []models.Participant{
		{UserID: primitive.NewObjectID()},
	})
	if errKind(err) != errs.KindInvalidArgument {
		t.Errorf("one-participant conversation error = %v, want invalid argument", err)
	}

	_, err = svc.CreateConversation(ctx, nil, models.ConversationKindDirect, []models.Participant{
		{UserID: primitive.NewObjectID()},
		{UserID: primitive.NewObjectID()},
		{UserID: primitive.NewObjectID()},
	})
	if errKind(err) != errs.KindInvalidArgument {
		t.Errorf("three-party direct conversation error = %v, want invalid argument", err)
	}
}

type membershipEvent struct {
	userID         primitive.ObjectID
	conversationID primitive.ObjectID
	joined         bool
}

type fakeRoomMembership struct {
	events []membershipEvent
}

func (f *fakeRoomMembership) JoinConversation(userID, conversationID primitive.ObjectID) {
	f.events = append(f.events, membershipEvent{userID: userID, conversationID: conversationID, joined: true})
}

func (f *fakeRoomMembership) LeaveConversation(userID, conversationID primitive.ObjectID) {
	f.events = append(f.events, membershipEvent{userID: userID, conversationID: conversationID, joined: false})
}

func (f *fakeRoomMembership) count(userID, conversationID primitive.ObjectID, joined bool) int {
	n := 0
	for _, e := range f.events {
		if e.userID == userID && e.conversationID == conversationID && e.joined == joined {
			n++
		}
	}
	return n
}

func TestCreateConversationSubscribesLiveConnections(t *testing.T) {
	svc, _ := newChatFixture(t)
	rooms := &fakeRoomMembership{}
	svc.SetRoomMembership(rooms)

	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	conversation := newDirectConversation(t, svc, u1, u2)

	if rooms.count(u1, conversation.ID, true) != 1 || rooms.count(u2, conversation.ID, true) != 1 {
		t.Errorf("membership events = %v, want one join per participant", rooms.events)
	}
}

func TestParticipantLifecycleRoomMembership(t *testing.T) {
	svc, repo := newChatFixture(t)
	rooms := &fakeRoomMembership{}
	svc.SetRoomMembership(rooms)
	ctx := context.Background()

	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	u3 := primitive.NewObjectID()

	conversation, err := svc.CreateConversation(ctx, nil, models.ConversationKindGroup, []models.Participant{
		{UserID: u1, Role: models.UserRoleClient},
		{UserID: u2, Role: models.UserRoleFundi},
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if err := svc.AddParticipant(ctx, conversation.ID, u1, models.Participant{UserID: u3, Role: models.UserRoleClient}); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	if rooms.count(u3, conversation.ID, true) != 1 {
		t.Errorf("membership events = %v, want a join for the new participant", rooms.events)
	}
	if !repo.conversations[conversation.ID].IsActiveParticipant(u3) {
		t.Error("new participant not active in the stored conversation")
	}

	if err := svc.AddParticipant(ctx, conversation.ID, u1, models.Participant{UserID: u3, Role: models.UserRoleClient}); errKind(err) != errs.KindConflict {
		t.Errorf("re-adding an active participant error = %v, want conflict", err)
	}
	if err := svc.AddParticipant(ctx, conversation.ID, primitive.NewObjectID(), models.Participant{UserID: primitive.NewObjectID()}); errKind(err) != errs.KindPermissionDenied {
		t.Errorf("AddParticipant by outsider error = %v, want permission denied", err)
	}

	if err := svc.RemoveParticipant(ctx, conversation.ID, u1, u3); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if rooms.count(u3, conversation.ID, false) != 1 {
		t.Errorf("membership events = %v, want a leave for the removed participant", rooms.events)
	}
	if repo.conversations[conversation.ID].IsActiveParticipant(u3) {
		t.Error("removed participant still active in the stored conversation")
	}

	if err := svc.RemoveParticipant(ctx, conversation.ID, u1, u3); errKind(err) != errs.KindNotFound {
		t.Errorf("removing an inactive participant error = %v, want not found", err)
	}
}

func TestDirectConversationMembershipIsFixed(t *testing.T) {
	svc, _ := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	if err := svc.AddParticipant(ctx, conversation.ID, u1, models.Participant{UserID: primitive.NewObjectID()}); errKind(err) != errs.KindInvalidArgument {
		t.Errorf("AddParticipant on direct conversation error = %v, want invalid argument", err)
	}
	if err := svc.RemoveParticipant(ctx, conversation.ID, u1, u2); errKind(err) != errs.KindInvalidArgument {
		t.Errorf("RemoveParticipant on direct conversation error = %v, want invalid argument", err)
	}
}

func TestCloseConversationLeavesRooms(t *testing.T) {
	svc, _ := newChatFixture(t)
	rooms := &fakeRoomMembership{}
	svc.SetRoomMembership(rooms)
	ctx := context.Background()

	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()
	conversation := newDirectConversation(t, svc, u1, u2)

	if err := svc.CloseConversation(ctx, conversation.ID, u1); err != nil {
		t.Fatalf("CloseConversation: %v", err)
	}
	if rooms.count(u1, conversation.ID, false) != 1 || rooms.count(u2, conversation.ID, false) != 1 {
		t.Errorf("membership events = %v, want one leave per participant", rooms.events)
	}
}

func TestDeleteMessageSenderOnly(t *testing.T) {
	svc, repo := newChatFixture(t)
	ctx := context.Background()
	u1 := primitive.NewObjectID()
	u2 := primitive.NewObjectID()

	conversation := newDirectConversation(t, svc, u1, u2)

	message, _, err := svc.PostMessage(ctx, conversation.ID, u1, &PostMessageInput{Content: "typo"})
	if err != nil {
		t.Fatalf("PostMessage: %v", err)
	}

	if err := svc.DeleteMessage(ctx, conversation.ID, message.ID, u2); errKind(err) != errs.KindPermissionDenied {
		t.Errorf("DeleteMessage by non-sender error = %v, want permission denied", err)
	}

	if err := svc.DeleteMessage(ctx, conversation.ID, message.ID, u1); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if repo.messages[message.ID].DeletedAt == nil {
		t.Error("message not soft deleted")
	}
}
