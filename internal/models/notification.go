package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string
type NotificationStatus string

const (
	NotificationTypeNewMessage   NotificationType = "new_message"
	NotificationTypeFundiArrived NotificationType = "fundi_arrived"
	NotificationTypeGeneral      NotificationType = "general"

	NotificationStatusQueued NotificationStatus = "queued"
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// Notification is the durable half of the delivery pipeline: the realtime
// core persists and queues these, external workers own the actual push,
// email, and SMS channels.
type Notification struct {
	ID        primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	UserID    primitive.ObjectID     `json:"user_id" bson:"user_id" validate:"required"`
	Type      NotificationType       `json:"type" bson:"type" validate:"required"`
	Status    NotificationStatus     `json:"status" bson:"status" default:"queued"`
	Title     string                 `json:"title" bson:"title" validate:"required"`
	Body      string                 `json:"body" bson:"body"`
	Data      map[string]interface{} `json:"data" bson:"data"`
	SentAt    *time.Time             `json:"sent_at" bson:"sent_at"`
	CreatedAt time.Time              `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updated_at"`
}
