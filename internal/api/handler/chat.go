package handler

import (
	"log"
	"net/http"

	"cinematch/backend/internal/api/middleware"
	"cinematch/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	RoomID string `json:"chat_room_id" binding:"required"`
	Text   string `json:"text" binding:"required,min=1,max=1000"`
}

type endChatRequest struct {
	RoomID string `json:"chat_room_id" binding:"required"`
}

// SendMessage appends a message to the caller's chat room and fans it
// out to every connection of both participants.
func (h *Handler) SendMessage(c *gin.Context) {
	userID, username := middleware.CurrentUser(c)

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	session, err := h.Sessions.GetSession(c.Request.Context(), req.RoomID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
		return
	}
	if !session.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not part of this chat room"})
		return
	}

	msg := models.NewMessage(req.RoomID, userID, username, req.Text)
	ok, err := h.Relay.Broadcast(c.Request.Context(), req.RoomID, msg)
	if err != nil {
		log.Printf("handler: broadcast failed for room %s: %v", req.RoomID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to send message"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat room not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// EndChat terminates the caller's chat session.
func (h *Handler) EndChat(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	var req endChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	ok, err := h.Lifecycle.EndSession(c.Request.Context(), req.RoomID, userID)
	if err != nil {
		log.Printf("handler: end chat failed for room %s: %v", req.RoomID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to end chat session"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to end chat session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ResetState clears the caller's matchmaking state. Always succeeds
// from the caller's perspective; it exists to unstick clients.
func (h *Handler) ResetState(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	h.Lifecycle.ResetUserState(c.Request.Context(), userID)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "chat state reset"})
}
