package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Message types stored alongside the payload so clients can render
// system notices differently from user text.
const (
	TypeText   = "text"
	TypeSystem = "system"
)

const (
	SystemSenderID   = "system"
	SystemSenderName = "System"
)

// ChatMessage is a single message in a chat room. Immutable once it has
// been assigned an ID; ordering is the room's append order.
type ChatMessage struct {
	ID         string `json:"id"`
	RoomID     string `json:"room_id,omitempty"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Text       string `json:"text"`
	Type       string `json:"type"`
	SentAt     int64  `json:"sent_at"` // unix milliseconds
}

// NewMessage creates a user text message with a server-assigned ID.
func NewMessage(roomID, senderID, senderName, text string) ChatMessage {
	return ChatMessage{
		ID:         NewMessageID(),
		RoomID:     roomID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
		Type:       TypeText,
		SentAt:     time.Now().UnixMilli(),
	}
}

// NewSystemMessage creates a server-originated notice for a room.
func NewSystemMessage(roomID, text string) ChatMessage {
	return ChatMessage{
		ID:         NewMessageID(),
		RoomID:     roomID,
		SenderID:   SystemSenderID,
		SenderName: SystemSenderName,
		Text:       text,
		Type:       TypeSystem,
		SentAt:     time.Now().UnixMilli(),
	}
}

// NewMessageID returns a 16-hex-char random message identifier.
func NewMessageID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Envelope is the payload carried on the cross-process fan-out channel.
// OriginConnID names the connection that already received the message
// synchronously, so the hosting process can skip it during delivery.
type Envelope struct {
	RoomID       string      `json:"room_id"`
	Message      ChatMessage `json:"message"`
	OriginConnID string      `json:"origin_conn_id,omitempty"`
}
