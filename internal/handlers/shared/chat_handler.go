package handlers

import (
	"fundilink/internal/middleware"
	"fundilink/internal/models"
	"fundilink/internal/services"
	"fundilink/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

type createConversationRequest struct {
	BookingID    string                  `json:"booking_id,omitempty"`
	Kind         models.ConversationKind `json:"kind" binding:"required"`
	Participants []struct {
		UserID string          `json:"user_id" binding:"required"`
		Role   models.UserRole `json:"role" binding:"required"`
	} `json:"participants" binding:"required"`
}

// CreateConversation opens a conversation for a booking or support thread.
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	var request createConversationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	var bookingID *primitive.ObjectID
	if request.BookingID != "" {
		id, err := primitive.ObjectIDFromHex(request.BookingID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid booking ID")
			return
		}
		bookingID = &id
	}

	participants := make([]models.Participant, 0, len(request.Participants))
	for _, p := range request.Participants {
		userID, err := primitive.ObjectIDFromHex(p.UserID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid participant user ID")
			return
		}
		participants = append(participants, models.Participant{
			UserID: userID,
			Role:   p.Role,
		})
	}

	conversation, err := h.chatService.CreateConversation(c.Request.Context(), bookingID, request.Kind, participants)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Conversation created", conversation)
}

// GetConversations lists the caller's conversations, most recent first.
func (h *ChatHandler) GetConversations(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	params := utils.GetPaginationParams(c)
	conversations, total, err := h.chatService.GetConversations(c.Request.Context(), principal.UserID, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Conversations retrieved", conversations, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// GetConversation returns a single conversation the caller participates in.
func (h *ChatHandler) GetConversation(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid conversation ID")
		return
	}

	conversation, err := h.chatService.GetConversation(c.Request.Context(), conversationID, principal.UserID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Conversation retrieved", conversation)
}

// GetMessages returns a conversation's message history in chronological
// order.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid conversation ID")
		return
	}

	params := utils.GetPaginationParams(c)
	messages, total, err := h.chatService.GetMessages(c.Request.Context(), conversationID, principal.UserID, params)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Messages retrieved", messages, &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	})
}

// CloseConversation ends a conversation for all participants.
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid conversation ID")
		return
	}

	if err := h.chatService.CloseConversation(c.Request.Context(), conversationID, principal.UserID); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Conversation closed", nil)
}

type addParticipantRequest struct {
	UserID string          `json:"user_id" binding:"required"`
	Role   models.UserRole `json:"role" binding:"required"`
}

// AddParticipant adds a user to a group conversation.
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid conversation ID")
		return
	}

	var request addParticipantRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, err := primitive.ObjectIDFromHex(request.UserID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid participant user ID")
		return
	}

	participant := models.Participant{UserID: userID, Role: request.Role}
	if err := h.chatService.AddParticipant(c.Request.Context(), conversationID, principal.UserID, participant); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Participant added", nil)
}

// RemoveParticipant removes a user from a group conversation.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid conversation ID")
		return
	}

	userID, err := primitive.ObjectIDFromHex(c.Param("user_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid participant user ID")
		return
	}

	if err := h.chatService.RemoveParticipant(c.Request.Context(), conversationID, principal.UserID, userID); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Participant removed", nil)
}

// DeleteMessage soft-deletes one of the caller's own messages.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		utils.UnauthorizedResponse(c)
		return
	}

	conversationID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid conversation ID")
		return
	}

	messageID, err := primitive.ObjectIDFromHex(c.Param("message_id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid message ID")
		return
	}

	if err := h.chatService.DeleteMessage(c.Request.Context(), conversationID, messageID, principal.UserID); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Message deleted", nil)
}
