package interfaces

import (
	"context"
	"time"

	"fundilink/internal/models"
	"fundilink/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationRepository interface {
	// Conversation CRUD
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error)
	GetConversationsByParticipant(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Conversation, int64, error)
	CloseConversation(ctx context.Context, id primitive.ObjectID) error

	// Membership
	GetConversationIDsByParticipant(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	AddParticipant(ctx context.Context, conversationID primitive.ObjectID, participant models.Participant) error
	DeactivateParticipant(ctx context.Context, conversationID, userID primitive.ObjectID, leftAt time.Time) error

	// Messages
	AppendMessage(ctx context.Context, message *models.Message, recipientIDs []primitive.ObjectID) error
	GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error)
	GetMessagesByIDs(ctx context.Context, conversationID primitive.ObjectID, ids []primitive.ObjectID) ([]*models.Message, error)

	// Read state
	AddReadReceipts(ctx context.Context, conversationID, userID primitive.ObjectID, messageIDs []primitive.ObjectID, readAt time.Time) error
	MarkMessagesStatusRead(ctx context.Context, messageIDs []primitive.ObjectID) error
	ResetUnreadCount(ctx context.Context, conversationID, userID primitive.ObjectID) error

	// Soft delete
	SoftDeleteMessage(ctx context.Context, id primitive.ObjectID) error
}
