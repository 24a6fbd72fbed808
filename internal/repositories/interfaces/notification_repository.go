package interfaces

import (
	"context"

	"fundilink/internal/models"
)

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
}
