package interfaces

import (
	"context"
	"time"

	"fundilink/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id primitive.ObjectID, at time.Time) error
	UpdatePresence(ctx context.Context, id primitive.ObjectID, status models.PresenceStatus, customStatus string) error
}
