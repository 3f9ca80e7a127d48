package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"cinematch/backend/internal/config"
	"cinematch/backend/internal/lifecycle"
	"cinematch/backend/internal/models"
	"cinematch/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})

	storageSvc := storage.NewStorageService(db, rdb)
	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: sessions | end <session_id> | reset <user_id>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sessions":
		if err := listSessions(ctx, storageSvc); err != nil {
			log.Fatalf("Error listing sessions: %v", err)
		}
	case "end":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin end <session_id>")
			os.Exit(1)
		}
		if err := forceEndSession(ctx, storageSvc, os.Args[2]); err != nil {
			log.Fatalf("Error ending session: %v", err)
		}
		fmt.Printf("Session %s has been ended.\n", os.Args[2])
	case "reset":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin reset <user_id>")
			os.Exit(1)
		}
		lc := lifecycle.NewControllerService(storageSvc)
		lc.ResetUserState(ctx, os.Args[2])
		fmt.Printf("State for user %s has been reset.\n", os.Args[2])
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func listSessions(ctx context.Context, s *storage.Service) error {
	var records []models.ChatRecord
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Find(&records).Error; err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("session=%s movie=%d user=%s started=%s\n",
			r.SessionID, r.MovieID, r.UserID, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("%d active participant records.\n", len(records))
	return nil
}

// forceEndSession tears a session down without requiring a
// participant's credentials. Mirrors the lifecycle controller's
// cleanup sequence.
func forceEndSession(ctx context.Context, s *storage.Service, sessionID string) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %s not found", sessionID)
	}

	notice := models.NewSystemMessage(sessionID, "Chat ended by an administrator.")
	if err := s.PublishEnvelope(ctx, models.Envelope{RoomID: sessionID, Message: notice}); err != nil {
		log.Printf("warning: could not notify participants: %v", err)
	}

	if err := s.ClearActiveSession(ctx, session.User1ID); err != nil {
		return err
	}
	if err := s.ClearActiveSession(ctx, session.User2ID); err != nil {
		return err
	}
	if err := s.DeactivateSession(ctx, sessionID); err != nil {
		return err
	}
	return s.RecordSessionEnd(ctx, sessionID)
}
