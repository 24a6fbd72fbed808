package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ConversationKind string
type ConversationStatus string

const (
	ConversationKindDirect ConversationKind = "direct"
	ConversationKindGroup  ConversationKind = "group"

	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusClosed ConversationStatus = "closed"
)

type Conversation struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	BookingID    *primitive.ObjectID `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	Kind         ConversationKind    `json:"kind" bson:"kind" default:"direct"`
	Status       ConversationStatus  `json:"status" bson:"status" default:"active"`
	Participants []Participant       `json:"participants" bson:"participants" validate:"required,min=2"`
	LastMessage  *MessageSummary     `json:"last_message" bson:"last_message"`
	CreatedAt    time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at" bson:"updated_at"`
	ClosedAt     *time.Time          `json:"closed_at" bson:"closed_at"`
}

// Participant entries are never removed from the slice; leaving a
// conversation flips IsActive and sets LeftAt so history stays intact.
type Participant struct {
	UserID      primitive.ObjectID `json:"user_id" bson:"user_id"`
	Role        UserRole           `json:"role" bson:"role"`
	IsActive    bool               `json:"is_active" bson:"is_active"`
	UnreadCount int                `json:"unread_count" bson:"unread_count"`
	JoinedAt    time.Time          `json:"joined_at" bson:"joined_at"`
	LeftAt      *time.Time         `json:"left_at" bson:"left_at"`
}

type MessageSummary struct {
	MessageID primitive.ObjectID `json:"message_id" bson:"message_id"`
	SenderID  primitive.ObjectID `json:"sender_id" bson:"sender_id"`
	Type      MessageType        `json:"type" bson:"type"`
	Preview   string             `json:"preview" bson:"preview"`
	SentAt    time.Time          `json:"sent_at" bson:"sent_at"`
}

func (c *Conversation) ActiveParticipants() []Participant {
	var active []Participant
	for _, p := range c.Participants {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active
}

func (c *Conversation) ActiveParticipantsCount() int {
	count := 0
	for _, p := range c.Participants {
		if p.IsActive {
			count++
		}
	}
	return count
}

func (c *Conversation) FindParticipant(userID primitive.ObjectID) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

func (c *Conversation) IsActiveParticipant(userID primitive.ObjectID) bool {
	p := c.FindParticipant(userID)
	return p != nil && p.IsActive
}
