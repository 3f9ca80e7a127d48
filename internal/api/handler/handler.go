package handler

import (
	"context"

	"cinematch/backend/internal/chathub"
	"cinematch/backend/internal/models"
	"cinematch/backend/internal/storage"
)

// MatchService is what the boundary needs from the matchmaker.
type MatchService interface {
	RequestMatch(ctx context.Context, userID, username string, movieID int) (models.MatchResult, error)
	PollStatus(ctx context.Context, userID string) (models.MatchResult, error)
}

// LifecycleService is what the boundary needs from the lifecycle
// controller.
type LifecycleService interface {
	EndSession(ctx context.Context, sessionID, userID string) (bool, error)
	ResetUserState(ctx context.Context, userID string)
}

// SessionStore is the read side of the chat session store.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	ValidateSession(ctx context.Context, sessionID, userID string) (models.ValidationResult, error)
}

// UserStore is the identity collaborator's account storage.
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Broadcaster delivers a message to every connection of a room across
// all processes.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomID string, msg models.ChatMessage) (bool, error)
}

// Handler wires the transport boundary to the core services.
type Handler struct {
	Hub       *chathub.ManagerService
	Matcher   MatchService
	Lifecycle LifecycleService
	Sessions  SessionStore
	Users     UserStore
	Relay     Broadcaster

	JWTSecret string
}

func NewHandler(hub *chathub.ManagerService, matcher MatchService, lc LifecycleService, s *storage.Service, jwtSecret string) *Handler {
	return &Handler{
		Hub:       hub,
		Matcher:   matcher,
		Lifecycle: lc,
		Sessions:  s,
		Users:     s,
		Relay:     hub,
		JWTSecret: jwtSecret,
	}
}
