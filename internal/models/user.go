package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStatus string
type UserRole string
type PresenceStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"

	UserRoleClient   UserRole = "client"
	UserRoleFundi    UserRole = "fundi"
	UserRoleOperator UserRole = "operator"

	// Self-declared availability, distinct from the connection-derived
	// online/offline state.
	PresenceAvailable PresenceStatus = "available"
	PresenceBusy      PresenceStatus = "busy"
	PresenceAway      PresenceStatus = "away"
)

func (s PresenceStatus) IsValid() bool {
	switch s {
	case PresenceAvailable, PresenceBusy, PresenceAway:
		return true
	}
	return false
}

type User struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	FirstName      string             `json:"first_name" bson:"first_name" validate:"required,min=2,max=50"`
	LastName       string             `json:"last_name" bson:"last_name" validate:"required,min=2,max=50"`
	Email          string             `json:"email" bson:"email" validate:"required,email"`
	Phone          string             `json:"phone" bson:"phone" validate:"required"`
	Password       string             `json:"-" bson:"password"`
	ProfilePicture string             `json:"profile_picture" bson:"profile_picture"`
	Role           UserRole           `json:"role" bson:"role" validate:"required"`
	Status         UserStatus         `json:"status" bson:"status" default:"active"`
	Presence       PresenceStatus     `json:"presence,omitempty" bson:"presence,omitempty"`
	CustomStatus   string             `json:"custom_status,omitempty" bson:"custom_status,omitempty"`
	LastLoginAt    *time.Time         `json:"last_login_at" bson:"last_login_at"`
	LastSeenAt     *time.Time         `json:"last_seen_at" bson:"last_seen_at"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
	DeletedAt      *time.Time         `json:"deleted_at" bson:"deleted_at"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive && u.DeletedAt == nil
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
