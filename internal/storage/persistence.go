package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cinematch/backend/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Durable collaborator methods. The audit trail is never consulted for
// live matching correctness; failures here are the caller's to log,
// not to propagate into session lifecycle.

// SaveUser inserts or updates an account row.
func (s *Service) SaveUser(ctx context.Context, user *models.User) error {
	return s.DB.WithContext(ctx).Save(user).Error
}

// GetUserByUsername returns the account, or nil if none exists.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID returns the account, or nil if none exists.
func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RecordSessionStart writes one audit row per participant.
func (s *Service) RecordSessionStart(ctx context.Context, session *models.ChatSession) error {
	records := []models.ChatRecord{
		{SessionID: session.ID, MovieID: session.MovieID, UserID: session.User1ID, IsActive: true},
		{SessionID: session.ID, MovieID: session.MovieID, UserID: session.User2ID, IsActive: true},
	}
	return s.DB.WithContext(ctx).Create(&records).Error
}

// RecordSessionEnd marks every audit row of the session inactive.
func (s *Service) RecordSessionEnd(ctx context.Context, sessionID string) error {
	return s.DB.WithContext(ctx).Model(&models.ChatRecord{}).
		Where("session_id = ?", sessionID).
		Update("is_active", false).Error
}

// RecordUserSessionEnd marks a single user's audit row inactive, used
// by the self-heal reset path.
func (s *Service) RecordUserSessionEnd(ctx context.Context, userID, sessionID string) error {
	return s.DB.WithContext(ctx).Model(&models.ChatRecord{}).
		Where("user_id = ? AND session_id = ? AND is_active = ?", userID, sessionID, true).
		Update("is_active", false).Error
}

// ExportTranscript stores the session's full message log as one
// durable row.
func (s *Service) ExportTranscript(ctx context.Context, session *models.ChatSession, msgs []models.ChatMessage) error {
	transcript := models.Transcript{
		SessionID: session.ID,
		MovieID:   session.MovieID,
		Lines:     pq.StringArray(FormatTranscript(session, msgs)),
	}
	if err := s.DB.WithContext(ctx).Create(&transcript).Error; err != nil {
		log.Printf("storage: failed to export transcript for session %s: %v", session.ID, err)
		return err
	}
	return nil
}

// FormatTranscript renders a session header plus one line per message,
// oldest first.
func FormatTranscript(session *models.ChatSession, msgs []models.ChatMessage) []string {
	lines := []string{
		fmt.Sprintf("Chat Room: %s", session.ID),
		fmt.Sprintf("Movie ID: %d", session.MovieID),
		fmt.Sprintf("Started: %s", time.UnixMilli(session.StartedAt).UTC().Format(time.RFC3339)),
		fmt.Sprintf("Users: %s, %s", session.User1Name, session.User2Name),
	}
	for _, msg := range msgs {
		stamp := time.UnixMilli(msg.SentAt).UTC().Format(time.RFC3339)
		if msg.SenderID == models.SystemSenderID {
			lines = append(lines, fmt.Sprintf("[%s] SYSTEM: %s", stamp, msg.Text))
		} else {
			lines = append(lines, fmt.Sprintf("[%s] %s: %s", stamp, msg.SenderName, msg.Text))
		}
	}
	return lines
}
