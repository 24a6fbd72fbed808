package mongodb

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"
	"fundilink/internal/services"
	"fundilink/internal/utils"

	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type conversationRepository struct {
	conversationsCollection *mongo.Collection
	messagesCollection      *mongo.Collection
	cache                   services.CacheService
}

func NewConversationRepository(db *mongo.Database, cache services.CacheService) interfaces.ConversationRepository {
	return &conversationRepository{
		conversationsCollection: db.Collection("conversations"),
		messagesCollection:      db.Collection("messages"),
		cache:                   cache,
	}
}

func (r *conversationRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	conversation.ID = primitive.NewObjectID()
	conversation.CreatedAt = time.Now()
	conversation.UpdatedAt = time.Now()

	_, err := r.conversationsCollection.InsertOne(ctx, conversation)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	r.cacheConversation(ctx, conversation)

	return nil
}

func (r *conversationRepository) GetConversationByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	if conversation := r.getConversationFromCache(ctx, id.Hex()); conversation != nil {
		return conversation, nil
	}

	var conversation models.Conversation
	err := r.conversationsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFoundError("conversation not found")
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	r.cacheConversation(ctx, &conversation)

	return &conversation, nil
}

func (r *conversationRepository) GetConversationsByParticipant(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Conversation, int64, error) {
	filter := bson.M{
		"participants": bson.M{"$elemMatch": bson.M{"user_id": userID, "is_active": true}},
	}

	total, err := r.conversationsCollection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count conversations: %w", err)
	}

	opts := params.GetSortOptions()
	if params.Sort == "created_at" || params.Sort == "" {
		opts.SetSort(bson.D{{Key: "updated_at", Value: -1}})
	}

	cursor, err := r.conversationsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []*models.Conversation
	for cursor.Next(ctx) {
		var conversation models.Conversation
		if err := cursor.Decode(&conversation); err != nil {
			return nil, 0, fmt.Errorf("failed to decode conversation: %w", err)
		}
		conversations = append(conversations, &conversation)
	}

	return conversations, total, nil
}

func (r *conversationRepository) CloseConversation(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()

	_, err := r.conversationsCollection.UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":     models.ConversationStatusClosed,
			"closed_at":  now,
			"updated_at": now,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to close conversation: %w", err)
	}

	r.invalidateConversationCache(ctx, id.Hex())

	return nil
}

func (r *conversationRepository) GetConversationIDsByParticipant(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{
		"status":       models.ConversationStatusActive,
		"participants": bson.M{"$elemMatch": bson.M{"user_id": userID, "is_active": true}},
	}

	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.conversationsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation ids: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode conversation id: %w", err)
		}
		ids = append(ids, doc.ID)
	}

	return ids, nil
}

func (r *conversationRepository) AddParticipant(ctx context.Context, conversationID primitive.ObjectID, participant models.Participant) error {
	_, err := r.conversationsCollection.UpdateOne(
		ctx,
		bson.M{"_id": conversationID},
		bson.M{
			"$push": bson.M{"participants": participant},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}

	r.invalidateConversationCache(ctx, conversationID.Hex())

	return nil
}

func (r *conversationRepository) DeactivateParticipant(ctx context.Context, conversationID, userID primitive.ObjectID, leftAt time.Time) error {
	_, err := r.conversationsCollection.UpdateOne(
		ctx,
		bson.M{"_id": conversationID, "participants.user_id": userID},
		bson.M{"$set": bson.M{
			"participants.$.is_active": false,
			"participants.$.left_at":   leftAt,
			"updated_at":               time.Now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate participant: %w", err)
	}

	r.invalidateConversationCache(ctx, conversationID.Hex())

	return nil
}

// AppendMessage inserts the message and updates the conversation in one
// transaction: last-message summary, unread counter bump for every recipient,
// and a reset of the sender's own counter.
func (r *conversationRepository) AppendMessage(ctx context.Context, message *models.Message, recipientIDs []primitive.ObjectID) error {
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	message.UpdatedAt = message.CreatedAt

	summary := &models.MessageSummary{
		MessageID: message.ID,
		SenderID:  message.SenderID,
		Type:      message.Type,
		Preview:   messagePreview(message),
		SentAt:    message.CreatedAt,
	}

	session, err := r.conversationsCollection.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	err = mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		_, err := r.messagesCollection.InsertOne(sc, message)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		update := bson.M{
			"$set": bson.M{
				"last_message":                        summary,
				"updated_at":                          message.CreatedAt,
				"participants.$[sender].unread_count": 0,
			},
		}
		// The recipient filter may only be declared when the update uses it,
		// otherwise the server rejects the whole command.
		filters := []interface{}{
			bson.M{"sender.user_id": message.SenderID},
		}
		if len(recipientIDs) > 0 {
			update["$inc"] = bson.M{"participants.$[recipient].unread_count": 1}
			filters = append(filters, bson.M{"recipient.user_id": bson.M{"$in": recipientIDs}})
		}

		arrayFilters := options.ArrayFilters{Filters: filters}

		_, err = r.conversationsCollection.UpdateOne(
			sc,
			bson.M{"_id": message.ConversationID},
			update,
			options.Update().SetArrayFilters(arrayFilters),
		)
		if err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}

		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	r.invalidateConversationCache(ctx, message.ConversationID.Hex())

	return nil
}

func (r *conversationRepository) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var message models.Message
	err := r.messagesCollection.FindOne(ctx, bson.M{
		"_id":        id,
		"deleted_at": nil,
	}).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFoundError("message not found")
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &message, nil
}

func (r *conversationRepository) GetMessagesByConversation(ctx context.Context, conversationID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Message, int64, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"deleted_at":      nil,
	}

	total, err := r.messagesCollection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	opts := params.GetSortOptions()
	// Chronological order by default.
	if params.Sort == "created_at" || params.Sort == "" {
		opts.SetSort(bson.D{{Key: "created_at", Value: 1}})
	}

	cursor, err := r.messagesCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var message models.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, 0, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}

func (r *conversationRepository) GetMessagesByIDs(ctx context.Context, conversationID primitive.ObjectID, ids []primitive.ObjectID) ([]*models.Message, error) {
	filter := bson.M{
		"_id":             bson.M{"$in": ids},
		"conversation_id": conversationID,
		"deleted_at":      nil,
	}

	cursor, err := r.messagesCollection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.Message
	for cursor.Next(ctx) {
		var message models.Message
		if err := cursor.Decode(&message); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &message)
	}

	return messages, nil
}

func (r *conversationRepository) AddReadReceipts(ctx context.Context, conversationID, userID primitive.ObjectID, messageIDs []primitive.ObjectID, readAt time.Time) error {
	receipt := models.ReadReceipt{
		UserID: userID,
		ReadAt: readAt,
	}

	_, err := r.messagesCollection.UpdateMany(
		ctx,
		bson.M{
			"_id":             bson.M{"$in": messageIDs},
			"conversation_id": conversationID,
			"read_by.user_id": bson.M{"$ne": userID}, // Only if not already read
			"deleted_at":      nil,
		},
		bson.M{
			"$push": bson.M{"read_by": receipt},
			"$set":  bson.M{"updated_at": readAt},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to add read receipts: %w", err)
	}

	return nil
}

func (r *conversationRepository) MarkMessagesStatusRead(ctx context.Context, messageIDs []primitive.ObjectID) error {
	_, err := r.messagesCollection.UpdateMany(
		ctx,
		bson.M{"_id": bson.M{"$in": messageIDs}, "deleted_at": nil},
		bson.M{"$set": bson.M{"status": models.MessageStatusRead}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	return nil
}

func (r *conversationRepository) ResetUnreadCount(ctx context.Context, conversationID, userID primitive.ObjectID) error {
	_, err := r.conversationsCollection.UpdateOne(
		ctx,
		bson.M{"_id": conversationID, "participants.user_id": userID},
		bson.M{"$set": bson.M{"participants.$.unread_count": 0}},
	)
	if err != nil {
		return fmt.Errorf("failed to reset unread count: %w", err)
	}

	r.invalidateConversationCache(ctx, conversationID.Hex())

	return nil
}

func (r *conversationRepository) SoftDeleteMessage(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.messagesCollection.UpdateOne(
		ctx,
		bson.M{"_id": id, "deleted_at": nil},
		bson.M{"$set": bson.M{"deleted_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	return nil
}

func messagePreview(message *models.Message) string {
	switch message.Type {
	case models.MessageTypeLocation:
		return "Shared a location"
	case models.MessageTypeAttachment:
		return "Sent an attachment"
	default:
		const maxPreview = 120
		if utf8.RuneCountInString(message.Content) > maxPreview {
			runes := []rune(message.Content)
			return string(runes[:maxPreview])
		}
		return message.Content
	}
}

// Cache operations
func (r *conversationRepository) cacheConversation(ctx context.Context, conversation *models.Conversation) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("conversation:%s", conversation.ID.Hex())
		r.cache.Set(ctx, cacheKey, conversation, 15*time.Minute)
	}
}

func (r *conversationRepository) getConversationFromCache(ctx context.Context, conversationID string) *models.Conversation {
	if r.cache == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("conversation:%s", conversationID)
	var conversation models.Conversation
	if err := r.cache.Get(ctx, cacheKey, &conversation); err != nil {
		return nil
	}

	return &conversation
}

func (r *conversationRepository) invalidateConversationCache(ctx context.Context, conversationID string) {
	if r.cache != nil {
		cacheKey := fmt.Sprintf("conversation:%s", conversationID)
		r.cache.Delete(ctx, cacheKey)
	}
}
