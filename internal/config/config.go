package config

import (
	"fmt"
	"os"
	"time"
)

const (
	// Matching
	InterestTTL      = time.Hour
	PointerTTL       = time.Hour
	MaxClaimAttempts = 3

	// Chat room
	SessionTTL    = 4 * time.Hour
	HistoryCap    = 50
	ReplayLimit   = 30
	MaxMessageLen = 1000

	// Auth
	TokenTTL = 72 * time.Hour

	// Boundary rate limiting
	ChatRequestsPerMinute = 120
	ChatRequestBurst      = 20
)

// Config holds the runtime settings read from the environment.
type Config struct {
	ListenAddr    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
}

// Load builds a Config from environment variables, falling back to
// local-development defaults. Call godotenv.Load before this in cmd.
func Load() *Config {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "cinematchdb"),
		envOr("DB_PORT", "5432"),
	)

	return &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		PostgresDSN:   dsn,
		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     envOr("JWT_SECRET", "dev-only-secret"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
