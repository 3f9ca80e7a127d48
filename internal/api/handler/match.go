package handler

import (
	"log"
	"net/http"

	"cinematch/backend/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

type matchRequest struct {
	MovieID int `json:"movie_id" binding:"required,gt=0"`
}

// RequestMatch registers the caller's interest in a movie and reports
// whether a partner was found. An unmatched caller stays in the
// waiting pool and polls Status.
func (h *Handler) RequestMatch(c *gin.Context) {
	userID, username := middleware.CurrentUser(c)

	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	result, err := h.Matcher.RequestMatch(c.Request.Context(), userID, username, req.MovieID)
	if err != nil {
		log.Printf("handler: match request failed for user %s: %v", userID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matching temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status reports whether the caller has an active match.
func (h *Handler) Status(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	result, err := h.Matcher.PollStatus(c.Request.Context(), userID)
	if err != nil {
		log.Printf("handler: status poll failed for user %s: %v", userID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "matching temporarily unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Validate reports whether a chat room is still usable by the caller.
func (h *Handler) Validate(c *gin.Context) {
	userID, _ := middleware.CurrentUser(c)

	roomID := c.Query("chat_room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chat room id is required"})
		return
	}

	result, err := h.Sessions.ValidateSession(c.Request.Context(), roomID, userID)
	if err != nil {
		log.Printf("handler: validate failed for room %s: %v", roomID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat service unavailable"})
		return
	}

	c.JSON(http.StatusOK, result)
}
