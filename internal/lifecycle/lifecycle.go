package lifecycle

import (
	"context"
	"log"

	"cinematch/backend/internal/config"
	"cinematch/backend/internal/models"
)

// Store is the slice of storage the lifecycle controller needs.
type Store interface {
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	DeactivateSession(ctx context.Context, sessionID string) error
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)

	ActiveSession(ctx context.Context, userID string) (string, error)
	ClearActiveSession(ctx context.Context, userID string) error
	ClearInterests(ctx context.Context, userID string) error

	PublishEnvelope(ctx context.Context, env models.Envelope) error

	ExportTranscript(ctx context.Context, session *models.ChatSession, msgs []models.ChatMessage) error
	RecordSessionEnd(ctx context.Context, sessionID string) error
	RecordUserSessionEnd(ctx context.Context, userID, sessionID string) error
}

// ControllerService orchestrates session termination and user state
// resets. Cleanup steps are idempotent and order-insensitive, so a
// crash mid-sequence leaves only state the TTLs will unwind.
type ControllerService struct {
	Storage Store
}

// NewControllerService creates a new lifecycle controller.
func NewControllerService(s Store) *ControllerService {
	return &ControllerService{Storage: s}
}

// EndSession terminates the session on behalf of a participant:
// notifies the counterparty, exports the transcript, clears both
// pointers and deactivates the room. Returns false only when the
// session is missing or the requester is not a participant; a failed
// transcript export never blocks termination.
func (c *ControllerService) EndSession(ctx context.Context, sessionID, userID string) (bool, error) {
	session, err := c.Storage.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if !session.HasParticipant(userID) {
		return false, nil
	}

	notice := models.NewSystemMessage(sessionID, "Chat ended by user.")
	if err := c.Storage.PublishEnvelope(ctx, models.Envelope{RoomID: sessionID, Message: notice}); err != nil {
		log.Printf("lifecycle: failed to publish end notice for session %s: %v", sessionID, err)
	}

	msgs, err := c.Storage.RecentMessages(ctx, sessionID, config.HistoryCap)
	if err != nil {
		log.Printf("lifecycle: failed to load transcript for session %s: %v", sessionID, err)
	} else if err := c.Storage.ExportTranscript(ctx, session, msgs); err != nil {
		log.Printf("lifecycle: transcript export failed for session %s: %v", sessionID, err)
	}

	if err := c.Storage.ClearActiveSession(ctx, session.User1ID); err != nil {
		log.Printf("lifecycle: failed to clear pointer for %s: %v", session.User1ID, err)
	}
	if err := c.Storage.ClearActiveSession(ctx, session.User2ID); err != nil {
		log.Printf("lifecycle: failed to clear pointer for %s: %v", session.User2ID, err)
	}

	if err := c.Storage.DeactivateSession(ctx, sessionID); err != nil {
		log.Printf("lifecycle: failed to deactivate session %s: %v", sessionID, err)
	}
	if err := c.Storage.RecordSessionEnd(ctx, sessionID); err != nil {
		log.Printf("lifecycle: failed to record session end %s: %v", sessionID, err)
	}

	log.Printf("lifecycle: session %s ended by %s", sessionID, userID)
	return true, nil
}

// ResetUserState unconditionally clears the caller's pointer and any
// waiting-pool entries. Used to self-heal a client stuck in an
// inconsistent state; it never reports an error to the caller.
func (c *ControllerService) ResetUserState(ctx context.Context, userID string) {
	sessionID, err := c.Storage.ActiveSession(ctx, userID)
	if err != nil {
		log.Printf("lifecycle: reset for %s could not read pointer: %v", userID, err)
	}
	if sessionID != "" {
		if err := c.Storage.ClearActiveSession(ctx, userID); err != nil {
			log.Printf("lifecycle: reset for %s could not clear pointer: %v", userID, err)
		}
		if err := c.Storage.RecordUserSessionEnd(ctx, userID, sessionID); err != nil {
			log.Printf("lifecycle: reset for %s could not update audit row: %v", userID, err)
		}
		log.Printf("lifecycle: reset cleared session %s for user %s", sessionID, userID)
	}

	if err := c.Storage.ClearInterests(ctx, userID); err != nil {
		log.Printf("lifecycle: reset for %s could not clear interests: %v", userID, err)
	}
}
