package routes

import (
	"fundilink/internal/gateway"
	handlers "fundilink/internal/handlers/shared"
	"fundilink/internal/middleware"
	"fundilink/internal/models"
	"fundilink/internal/services"

	"github.com/gin-gonic/gin"
)

// SetupRealtimeRoutes wires the websocket endpoint and the REST surface of
// the realtime layer.
func SetupRealtimeRoutes(
	router *gin.Engine,
	v1 *gin.RouterGroup,
	gw *gateway.Gateway,
	chatHandler *handlers.ChatHandler,
	trackingHandler *handlers.TrackingHandler,
	authService services.AuthService,
	wsPath string,
) {
	// The websocket handshake authenticates inline so failures are rejected
	// before any connection exists.
	router.GET(wsPath, gw.HandleWebSocket)

	conversations := v1.Group("/conversations")
	conversations.Use(middleware.AuthRequired(authService))
	{
		conversations.POST("/", chatHandler.CreateConversation)
		conversations.GET("/", chatHandler.GetConversations)
		conversations.GET("/:id", chatHandler.GetConversation)
		conversations.GET("/:id/messages", chatHandler.GetMessages)
		conversations.PUT("/:id/close", chatHandler.CloseConversation)
		conversations.POST("/:id/participants", chatHandler.AddParticipant)
		conversations.DELETE("/:id/participants/:user_id", chatHandler.RemoveParticipant)
		conversations.DELETE("/:id/messages/:message_id", chatHandler.DeleteMessage)
	}

	tracking := v1.Group("/tracking")
	tracking.Use(middleware.AuthRequired(authService))
	{
		tracking.POST("/sessions", middleware.RoleRequired(models.UserRoleFundi), trackingHandler.StartSession)
		tracking.GET("/sessions/:id", trackingHandler.GetSession)
		tracking.PUT("/sessions/:id/stop", middleware.RoleRequired(models.UserRoleFundi), trackingHandler.StopSession)
		tracking.PUT("/sessions/:id/cancel", trackingHandler.CancelSession)
		tracking.GET("/bookings/:booking_id/session", trackingHandler.GetSessionByBooking)
	}
}
