package handlers

import (
	"fundilink/internal/middleware"
	"fundilink/internal/models"
	"fundilink/internal/services"
	"fundilink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TrackingHandler struct {
	trackingService services.TrackingService
}

func NewTrackingHandler(trackingService services.TrackingService) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
	}
}

type startSessionRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	ClientID  string `json:"client_id" binding:"required"`
	Geofence  struct {
		Latitude     float64 `json:"latitude" binding:"required"`
		Longitude    float64 `json:"longitude" binding:"required"`
		RadiusMeters float64 `json:"radius_meters"`
		Address      string  `json:"address"`
	} `json:"geofence" binding:"required"`
	Settings *models.TrackingSettings `json:"settings,omitempty"`
}

// StartSession begins sharing the calling fundi's location for a booking.
func (h *TrackingHandler) StartSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	var request startSessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	bookingID, err := primitive.ObjectIDFromHex(request.BookingID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}
	clientID, err := primitive.ObjectIDFromHex(request.ClientID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid client ID")
		return
	}

	session, err := h.trackingService.StartSession(c.Request.Context(), &services.StartSessionInput{
		BookingID: bookingID,
		FundiID:   principal.UserID,
		ClientID:  clientID,
		Settings:  request.Settings,
		Geofence: models.GeofenceTarget{
			Latitude:     request.Geofence.Latitude,
			Longitude:    request.Geofence.Longitude,
			RadiusMeters: request.Geofence.RadiusMeters,
			Address:      request.Geofence.Address,
		},
	})
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Tracking session started", session)
}

// GetSession returns a session with derived distance and ETA, masked for
// observers when precise sharing is off.
func (h *TrackingHandler) GetSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	sessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return
	}

	view, err := h.trackingService.GetSession(c.Request.Context(), sessionID, principal)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Tracking session retrieved", view)
}

// GetSessionByBooking resolves the active session for a booking.
func (h *TrackingHandler) GetSessionByBooking(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	bookingID, err := primitive.ObjectIDFromHex(c.Param("booking_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid booking ID")
		return
	}

	view, err := h.trackingService.GetActiveSessionByBooking(c.Request.Context(), bookingID, principal)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Tracking session retrieved", view)
}

// StopSession completes the calling fundi's active session.
func (h *TrackingHandler) StopSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	sessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return
	}

	session, err := h.trackingService.StopSession(c.Request.Context(), sessionID, principal.UserID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Tracking session stopped", session)
}

// CancelSession aborts a session; either party or an operator may cancel.
func (h *TrackingHandler) CancelSession(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	sessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return
	}

	session, err := h.trackingService.CancelSession(c.Request.Context(), sessionID, principal)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Tracking session cancelled", session)
}
