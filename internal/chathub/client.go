package chathub

import "cinematch/backend/internal/models"

// Client is one live connection bound to the relay. It abstracts the
// underlying transport so the hub can manage connection types
// uniformly and tests can substitute fakes.
type Client interface {
	// ConnID returns the unique identifier of this connection. Used for
	// duplicate suppression on the cross-process fan-out channel.
	ConnID() string
	// UserID returns the authenticated user's id, or "" before auth.
	UserID() string
	// Username returns the authenticated user's display name.
	Username() string

	// RoomID returns the session this connection has joined, or "".
	RoomID() string

	// SendChannel returns the channel the hub delivers events through.
	SendChannel() chan<- models.ServerEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down outbound delivery; safe to call more than once.
	Close()
}
