package services

import (
	"context"
	"time"
	"unicode/utf8"

	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"
	"fundilink/internal/utils"
	"fundilink/pkg/logger"

	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostMessageInput struct {
	Content     string
	Type        models.MessageType
	Attachments []models.Attachment
	Location    *models.Location
}

// MarkReadResult reports which messages actually gained a read receipt, so
// the caller broadcasts only real state changes.
type MarkReadResult struct {
	MessageIDs []primitive.ObjectID
	ReadAt     time.Time
}

// RoomMembership reacts to conversation membership changes so the live
// connections of affected users are subscribed to, or removed from, the
// conversation room without waiting for a reconnect.
type RoomMembership interface {
	JoinConversation(userID, conversationID primitive.ObjectID)
	LeaveConversation(userID, conversationID primitive.ObjectID)
}

type ChatService interface {
	CreateConversation(ctx context.Context, bookingID *primitive.ObjectID, kind models.ConversationKind, participants []models.Participant) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.Conversation, error)
	GetConversations(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Conversation, int64, error)
	CloseConversation(ctx context.Context, conversationID, userID primitive.ObjectID) error
	AddParticipant(ctx context.Context, conversationID, callerID primitive.ObjectID, participant models.Participant) error
	RemoveParticipant(ctx context.Context, conversationID, callerID, userID primitive.ObjectID) error

	// SetRoomMembership wires the realtime layer in after construction; the
	// gateway depends on this service, so it cannot be a constructor argument.
	SetRoomMembership(rooms RoomMembership)

	// RoomsFor resolves the conversation rooms a user currently belongs to.
	RoomsFor(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)

	// PostMessage appends a message and returns it together with the user IDs
	// of the other active participants at append time.
	PostMessage(ctx context.Context, conversationID, senderID primitive.ObjectID, input *PostMessageInput) (*models.Message, []primitive.ObjectID, error)
	MarkRead(ctx context.Context, conversationID, userID primitive.ObjectID, messageIDs []primitive.ObjectID) (*MarkReadResult, error)
	GetMessages(ctx context.Context, conversationID, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error)
	DeleteMessage(ctx context.Context, conversationID, messageID, userID primitive.ObjectID) error
}

type chatService struct {
	conversationRepo interfaces.ConversationRepository
	rooms            RoomMembership
	logger           *logger.Logger
}

func NewChatService(conversationRepo interfaces.ConversationRepository, log *logger.Logger) ChatService {
	return &chatService{
		conversationRepo: conversationRepo,
		logger:           log,
	}
}

func (s *chatService) SetRoomMembership(rooms RoomMembership) {
	s.rooms = rooms
}

func (s *chatService) CreateConversation(ctx context.Context, bookingID *primitive.ObjectID, kind models.ConversationKind, participants []models.Participant) (*models.Conversation, error) {
	if len(participants) < 2 {
		return nil, errs.InvalidArgumentError("a conversation needs at least two participants")
	}
	if kind == models.ConversationKindDirect && len(participants) != 2 {
		return nil, errs.InvalidArgumentError("a direct conversation has exactly two participants")
	}

	now := time.Now()
	for i := range participants {
		participants[i].IsActive = true
		participants[i].UnreadCount = 0
		participants[i].JoinedAt = now
	}

	conversation := &models.Conversation{
		BookingID:    bookingID,
		Kind:         kind,
		Status:       models.ConversationStatusActive,
		Participants: participants,
	}

	if err := s.conversationRepo.CreateConversation(ctx, conversation); err != nil {
		return nil, err
	}

	if s.rooms != nil {
		for _, p := range participants {
			s.rooms.JoinConversation(p.UserID, conversation.ID)
		}
	}

	s.logger.WithConversationID(conversation.ID).Info("Conversation created")

	return conversation, nil
}

func (s *chatService) GetConversation(ctx context.Context, conversationID, userID primitive.ObjectID) (*models.Conversation, error) {
	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if conversation.FindParticipant(userID) == nil {
		return nil, errs.PermissionDeniedError("not a participant of this conversation")
	}

	return conversation, nil
}

func (s *chatService) GetConversations(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Conversation, int64, error) {
	return s.conversationRepo.GetConversationsByParticipant(ctx, userID, params)
}

func (s *chatService) CloseConversation(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if !conversation.IsActiveParticipant(userID) {
		return errs.PermissionDeniedError("not a participant of this conversation")
	}

	if err := s.conversationRepo.CloseConversation(ctx, conversationID); err != nil {
		return err
	}

	if s.rooms != nil {
		for _, p := range conversation.Participants {
			s.rooms.LeaveConversation(p.UserID, conversationID)
		}
	}

	return nil
}

func (s *chatService) AddParticipant(ctx context.Context, conversationID, callerID primitive.ObjectID, participant models.Participant) error {
	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if conversation.Status != models.ConversationStatusActive {
		return errs.ConflictError("conversation is closed")
	}
	if conversation.Kind == models.ConversationKindDirect {
		return errs.InvalidArgumentError("a direct conversation cannot gain participants")
	}
	if !conversation.IsActiveParticipant(callerID) {
		return errs.PermissionDeniedError("not an active participant of this conversation")
	}
	if conversation.IsActiveParticipant(participant.UserID) {
		return errs.ConflictError("user is already a participant")
	}

	participant.IsActive = true
	participant.UnreadCount = 0
	participant.JoinedAt = time.Now()
	participant.LeftAt = nil

	if err := s.conversationRepo.AddParticipant(ctx, conversationID, participant); err != nil {
		return err
	}

	if s.rooms != nil {
		s.rooms.JoinConversation(participant.UserID, conversationID)
	}

	s.logger.WithConversationID(conversationID).WithUserID(participant.UserID).Info("Participant added")

	return nil
}

func (s *chatService) RemoveParticipant(ctx context.Context, conversationID, callerID, userID primitive.ObjectID) error {
	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return err
	}

	if conversation.Kind == models.ConversationKindDirect {
		return errs.InvalidArgumentError("a direct conversation cannot lose participants")
	}
	if !conversation.IsActiveParticipant(callerID) {
		return errs.PermissionDeniedError("not an active participant of this conversation")
	}
	if !conversation.IsActiveParticipant(userID) {
		return errs.NotFoundError("user is not an active participant")
	}

	if err := s.conversationRepo.DeactivateParticipant(ctx, conversationID, userID, time.Now()); err != nil {
		return err
	}

	if s.rooms != nil {
		s.rooms.LeaveConversation(userID, conversationID)
	}

	s.logger.WithConversationID(conversationID).WithUserID(userID).Info("Participant removed")

	return nil
}

func (s *chatService) RoomsFor(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	return s.conversationRepo.GetConversationIDsByParticipant(ctx, userID)
}

func (s *chatService) PostMessage(ctx context.Context, conversationID, senderID primitive.ObjectID, input *PostMessageInput) (*models.Message, []primitive.ObjectID, error) {
	if err := validateMessageInput(input); err != nil {
		return nil, nil, err
	}

	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}

	if conversation.Status != models.ConversationStatusActive {
		return nil, nil, errs.ConflictError("conversation is closed")
	}
	if !conversation.IsActiveParticipant(senderID) {
		return nil, nil, errs.PermissionDeniedError("not an active participant of this conversation")
	}

	now := time.Now()

	// Delivery snapshot: every active participant at append time. Recipients
	// are the snapshot minus the sender.
	var deliveredTo []models.DeliveryReceipt
	var recipientIDs []primitive.ObjectID
	for _, p := range conversation.ActiveParticipants() {
		deliveredTo = append(deliveredTo, models.DeliveryReceipt{UserID: p.UserID, DeliveredAt: now})
		if p.UserID != senderID {
			recipientIDs = append(recipientIDs, p.UserID)
		}
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Type:           input.Type,
		Status:         models.MessageStatusDelivered,
		Content:        input.Content,
		Attachments:    input.Attachments,
		Location:       input.Location,
		DeliveredTo:    deliveredTo,
		ReadBy:         []models.ReadReceipt{{UserID: senderID, ReadAt: now}},
	}

	if err := s.conversationRepo.AppendMessage(ctx, message, recipientIDs); err != nil {
		return nil, nil, err
	}

	s.logger.WithConversationID(conversationID).WithUserID(senderID).Debug("Message posted")

	return message, recipientIDs, nil
}

func validateMessageInput(input *PostMessageInput) error {
	if input.Type == "" {
		input.Type = models.MessageTypeText
	}

	switch input.Type {
	case models.MessageTypeText, models.MessageTypeSystem:
		if input.Content == "" {
			return errs.InvalidArgumentError("message content is required")
		}
	case models.MessageTypeAttachment:
		if len(input.Attachments) == 0 {
			return errs.InvalidArgumentError("attachment message needs at least one attachment")
		}
	case models.MessageTypeLocation:
		if input.Location == nil {
			return errs.InvalidArgumentError("location message needs a location")
		}
		if !utils.IsValidCoordinates(input.Location.Latitude(), input.Location.Longitude()) {
			return errs.InvalidArgumentError("invalid coordinates")
		}
	default:
		return errs.InvalidArgumentError("unknown message type")
	}

	if utf8.RuneCountInString(input.Content) > utils.MaxMessageLength {
		return errs.InvalidArgumentError("message content exceeds maximum length")
	}

	return nil
}

func (s *chatService) MarkRead(ctx context.Context, conversationID, userID primitive.ObjectID, messageIDs []primitive.ObjectID) (*MarkReadResult, error) {
	if len(messageIDs) == 0 {
		return nil, errs.InvalidArgumentError("no message ids given")
	}

	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.IsActiveParticipant(userID) {
		return nil, errs.PermissionDeniedError("not an active participant of this conversation")
	}

	messages, err := s.conversationRepo.GetMessagesByIDs(ctx, conversationID, messageIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// A reader must appear in the delivery snapshot (or be the sender) before
	// it may appear in readBy. Already-read messages drop out silently.
	var toMark []primitive.ObjectID
	var toFlip []primitive.ObjectID
	for _, message := range messages {
		if message.IsReadBy(userID) {
			continue
		}
		if !message.IsDeliveredTo(userID) && message.SenderID != userID {
			continue
		}
		toMark = append(toMark, message.ID)
		if !hasForeignReader(message) {
			toFlip = append(toFlip, message.ID)
		}
	}

	if len(toMark) > 0 {
		if err := s.conversationRepo.AddReadReceipts(ctx, conversationID, userID, toMark, now); err != nil {
			return nil, err
		}
	}
	if len(toFlip) > 0 {
		if err := s.conversationRepo.MarkMessagesStatusRead(ctx, toFlip); err != nil {
			return nil, err
		}
	}

	if err := s.conversationRepo.ResetUnreadCount(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	return &MarkReadResult{MessageIDs: toMark, ReadAt: now}, nil
}

// hasForeignReader reports whether any non-sender read receipt exists yet.
func hasForeignReader(message *models.Message) bool {
	for _, r := range message.ReadBy {
		if r.UserID != message.SenderID {
			return true
		}
	}
	return false
}

func (s *chatService) GetMessages(ctx context.Context, conversationID, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	conversation, err := s.conversationRepo.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if conversation.FindParticipant(userID) == nil {
		return nil, 0, errs.PermissionDeniedError("not a participant of this conversation")
	}

	return s.conversationRepo.GetMessagesByConversation(ctx, conversationID, params)
}

func (s *chatService) DeleteMessage(ctx context.Context, conversationID, messageID, userID primitive.ObjectID) error {
	message, err := s.conversationRepo.GetMessageByID(ctx, messageID)
	if err != nil {
		return err
	}

	if message.ConversationID != conversationID {
		return errs.NotFoundError("message not found")
	}
	if message.SenderID != userID {
		return errs.PermissionDeniedError("only the sender can delete a message")
	}

	return s.conversationRepo.SoftDeleteMessage(ctx, messageID)
}
