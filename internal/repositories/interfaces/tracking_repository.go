package interfaces

import (
	"context"

	"fundilink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TrackingRepository interface {
	CreateSession(ctx context.Context, session *models.TrackingSession) error
	GetSessionByID(ctx context.Context, id primitive.ObjectID) (*models.TrackingSession, error)
	GetActiveSessionByBooking(ctx context.Context, bookingID primitive.ObjectID) (*models.TrackingSession, error)
	GetActiveSessionForSubject(ctx context.Context, sessionID, fundiID primitive.ObjectID) (*models.TrackingSession, error)
	ListActiveSessions(ctx context.Context) ([]*models.TrackingSession, error)

	// UpdateActiveSession persists a mutated session aggregate guarded by a
	// compare-and-swap on status=active, so a session that went terminal on
	// another path is never revived.
	UpdateActiveSession(ctx context.Context, session *models.TrackingSession) error
}
