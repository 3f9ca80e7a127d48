package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"cinematch/backend/internal/api/handler"
	"cinematch/backend/internal/api/middleware"
	"cinematch/backend/internal/api/token"
	"cinematch/backend/internal/chathub"
	"cinematch/backend/internal/config"
	"cinematch/backend/internal/lifecycle"
	"cinematch/backend/internal/matchmaker"
	"cinematch/backend/internal/models"
	"cinematch/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// Store/bus unavailability is retried with backoff inside the
	// client before an operation reports an error.
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.RedisAddr,
		Password:        cfg.RedisPassword,
		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatRecord{},
		&models.Transcript{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting CineMatch Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	verify := func(tok string) (string, string, error) {
		payload, err := token.Parse(tok, cfg.JWTSecret)
		if err != nil {
			return "", "", err
		}
		return payload.UserID, payload.Username, nil
	}

	hub := chathub.NewManagerService(s, verify)
	matcher := matchmaker.NewMatcherService(s)
	lc := lifecycle.NewControllerService(s)

	go hub.Run(context.Background())

	r := gin.Default()
	h := handler.NewHandler(hub, matcher, lc, s, cfg.JWTSecret)

	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	r.GET("/ws", h.ServeWebSocket)

	limiter := middleware.NewLimiterStore(config.ChatRequestsPerMinute, config.ChatRequestBurst)
	chat := r.Group("/api/chat", middleware.RequireAuth(cfg.JWTSecret), middleware.RateLimit(limiter))
	{
		chat.POST("/match", h.RequestMatch)
		chat.GET("/status", h.Status)
		chat.GET("/validate", h.Validate)
		chat.POST("/message", h.SendMessage)
		chat.POST("/end", h.EndChat)
		chat.POST("/reset", h.ResetState)
	}

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
