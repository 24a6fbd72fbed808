package utils

import "time"

// Application Constants
const (
	AppName    = "FundiLink"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	JWTAccessTokenTTL  = 24 * time.Hour
	JWTRefreshTokenTTL = 7 * 24 * time.Hour

	// Messaging
	MaxMessageLength      = 5000
	MaxAttachmentsPerMsg  = 10
	TypingIndicatorExpiry = 3 * time.Second

	// Location tracking
	DefaultSampleInterval  = 15 * time.Second
	DefaultMaxSessionTime  = 4 * time.Hour
	DefaultGeofenceRadius  = 100.0 // meters
	MaskedCoordinatePlaces = 2     // decimal degrees kept when masking
	MetersPerKilometer     = 1000.0
	EarthRadiusKM          = 6371.0
	SessionSweepInterval   = time.Minute

	// User roles
	RoleClient   = "client"
	RoleFundi    = "fundi"
	RoleOperator = "operator"

	// Response statuses
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common error messages
const (
	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrUnauthorized     = "Unauthorized access"
	ErrForbidden        = "Access forbidden"
)
