package mongodb

import (
	"context"
	"fmt"
	"time"

	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"

	"github.com/nicolasparada/go-errs"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type trackingRepository struct {
	collection *mongo.Collection
}

func NewTrackingRepository(db *mongo.Database) interfaces.TrackingRepository {
	return &trackingRepository{
		collection: db.Collection("tracking_sessions"),
	}
}

func (r *trackingRepository) CreateSession(ctx context.Context, session *models.TrackingSession) error {
	session.ID = primitive.NewObjectID()
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt

	_, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ConflictError("an active tracking session already exists for this booking")
		}
		return fmt.Errorf("failed to create tracking session: %w", err)
	}

	return nil
}

func (r *trackingRepository) GetSessionByID(ctx context.Context, id primitive.ObjectID) (*models.TrackingSession, error) {
	var session models.TrackingSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFoundError("tracking session not found")
		}
		return nil, fmt.Errorf("failed to get tracking session: %w", err)
	}

	return &session, nil
}

func (r *trackingRepository) GetActiveSessionByBooking(ctx context.Context, bookingID primitive.ObjectID) (*models.TrackingSession, error) {
	var session models.TrackingSession
	err := r.collection.FindOne(ctx, bson.M{
		"booking_id": bookingID,
		"status":     models.TrackingStatusActive,
	}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFoundError("no active tracking session for booking")
		}
		return nil, fmt.Errorf("failed to get tracking session: %w", err)
	}

	return &session, nil
}

func (r *trackingRepository) GetActiveSessionForSubject(ctx context.Context, sessionID, fundiID primitive.ObjectID) (*models.TrackingSession, error) {
	var session models.TrackingSession
	err := r.collection.FindOne(ctx, bson.M{
		"_id":      sessionID,
		"fundi_id": fundiID,
		"status":   models.TrackingStatusActive,
	}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errs.NotFoundError("no active tracking session for fundi")
		}
		return nil, fmt.Errorf("failed to get tracking session: %w", err)
	}

	return &session, nil
}

func (r *trackingRepository) ListActiveSessions(ctx context.Context) ([]*models.TrackingSession, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"status": models.TrackingStatusActive})
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.TrackingSession
	for cursor.Next(ctx) {
		var session models.TrackingSession
		if err := cursor.Decode(&session); err != nil {
			return nil, fmt.Errorf("failed to decode tracking session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

// UpdateActiveSession replaces the stored session only while it is still
// active. The status guard makes concurrent sample writers and the expiry
// sweeper lose cleanly instead of resurrecting a completed session.
func (r *trackingRepository) UpdateActiveSession(ctx context.Context, session *models.TrackingSession) error {
	session.UpdatedAt = time.Now()

	result, err := r.collection.ReplaceOne(
		ctx,
		bson.M{"_id": session.ID, "status": models.TrackingStatusActive},
		session,
	)
	if err != nil {
		return fmt.Errorf("failed to update tracking session: %w", err)
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundError("no active tracking session to update")
	}

	return nil
}
