package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is a registered account in PostgreSQL. Chat identity is the
// anonymous UUID; credentials never leave the auth boundary.
type User struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	CreatedAt    time.Time
}

// BeforeCreate generates the user's UUID if one is not already set.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// ChatRecord is the durable audit row for one user's side of a session.
// Written fire-and-forget by the matchmaker; never consulted for live
// matching correctness.
type ChatRecord struct {
	gorm.Model

	SessionID string `gorm:"type:text;not null;index"`
	MovieID   int    `gorm:"not null"`
	UserID    string `gorm:"type:text;not null;index"`
	IsActive  bool
}

// Transcript is the exported message log of an ended session.
type Transcript struct {
	gorm.Model

	SessionID string         `gorm:"type:text;not null;index"`
	MovieID   int            `gorm:"not null"`
	Lines     pq.StringArray `gorm:"type:text[]"`
}
