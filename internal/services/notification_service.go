package services

import (
	"context"

	"fundilink/internal/models"
	"fundilink/internal/repositories/interfaces"
	"fundilink/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notificationQueueKey = "notifications:queue"

// NotificationSink hands notifications to the out-of-process delivery
// workers. Enqueue failures are logged, never surfaced: a dropped push must
// not fail the operation that produced it.
type NotificationSink interface {
	NotifyOffline(ctx context.Context, userID primitive.ObjectID, notificationType models.NotificationType, title, body string, data map[string]interface{})
}

type notificationService struct {
	notificationRepo interfaces.NotificationRepository
	cache            CacheService
	logger           *logger.Logger
}

func NewNotificationService(notificationRepo interfaces.NotificationRepository, cache CacheService, log *logger.Logger) NotificationSink {
	return &notificationService{
		notificationRepo: notificationRepo,
		cache:            cache,
		logger:           log,
	}
}

func (s *notificationService) NotifyOffline(ctx context.Context, userID primitive.ObjectID, notificationType models.NotificationType, title, body string, data map[string]interface{}) {
	notification := &models.Notification{
		UserID: userID,
		Type:   notificationType,
		Status: models.NotificationStatusQueued,
		Title:  title,
		Body:   body,
		Data:   data,
	}

	if err := s.notificationRepo.CreateNotification(ctx, notification); err != nil {
		s.logger.WithError(err).WithUserID(userID).Error("Failed to persist notification")
		return
	}

	if err := s.cache.LPush(ctx, notificationQueueKey, notification); err != nil {
		s.logger.WithError(err).WithUserID(userID).Error("Failed to enqueue notification")
	}
}
