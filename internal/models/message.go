package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string
type MessageStatus string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeAttachment MessageType = "attachment"
	MessageTypeLocation   MessageType = "location"
	MessageTypeSystem     MessageType = "system"

	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversation_id" bson:"conversation_id" validate:"required"`
	SenderID       primitive.ObjectID `json:"sender_id" bson:"sender_id" validate:"required"`
	Type           MessageType        `json:"type" bson:"type" default:"text"`
	Status         MessageStatus      `json:"status" bson:"status" default:"sent"`
	Content        string             `json:"content" bson:"content"`
	Attachments    []Attachment       `json:"attachments,omitempty" bson:"attachments,omitempty"`
	Location       *Location          `json:"location,omitempty" bson:"location,omitempty"`
	DeliveredTo    []DeliveryReceipt  `json:"delivered_to" bson:"delivered_to"`
	ReadBy         []ReadReceipt      `json:"read_by" bson:"read_by"`
	EditedAt       *time.Time         `json:"edited_at" bson:"edited_at"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
	DeletedAt      *time.Time         `json:"deleted_at" bson:"deleted_at"`
}

type Attachment struct {
	URL      string `json:"url" bson:"url"`
	Name     string `json:"name" bson:"name"`
	MimeType string `json:"mime_type" bson:"mime_type"`
	Size     int64  `json:"size" bson:"size"`
}

// DeliveredTo is a snapshot of the conversation's active participants at
// append time; later joiners never appear in it.
type DeliveryReceipt struct {
	UserID      primitive.ObjectID `json:"user_id" bson:"user_id"`
	DeliveredAt time.Time          `json:"delivered_at" bson:"delivered_at"`
}

type ReadReceipt struct {
	UserID primitive.ObjectID `json:"user_id" bson:"user_id"`
	ReadAt time.Time          `json:"read_at" bson:"read_at"`
}

func (m *Message) IsDeliveredTo(userID primitive.ObjectID) bool {
	for _, d := range m.DeliveredTo {
		if d.UserID == userID {
			return true
		}
	}
	return false
}

func (m *Message) IsReadBy(userID primitive.ObjectID) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
