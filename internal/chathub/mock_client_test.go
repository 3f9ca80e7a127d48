package chathub_test

import (
	"sync"
	"sync/atomic"

	"cinematch/backend/internal/models"
)

// fakeClient is a hub-side stand-in for a live connection. Its send
// channel is buffered so tests can inspect delivered events without a
// running write pump.
type fakeClient struct {
	connID   string
	userID   string
	username string
	roomID   string

	send      chan models.ServerEvent
	closeOnce sync.Once
	closed    atomic.Bool
}

func newFakeClient(connID, userID, roomID string, buffer int) *fakeClient {
	return &fakeClient{
		connID:   connID,
		userID:   userID,
		username: userID,
		roomID:   roomID,
		send:     make(chan models.ServerEvent, buffer),
	}
}

func (c *fakeClient) ConnID() string   { return c.connID }
func (c *fakeClient) UserID() string   { return c.userID }
func (c *fakeClient) Username() string { return c.username }
func (c *fakeClient) RoomID() string   { return c.roomID }

func (c *fakeClient) SendChannel() chan<- models.ServerEvent { return c.send }

func (c *fakeClient) Run() {}

// Close marks the client shut down without closing the send channel,
// mirroring the real client: the hub and the read pump may still be
// sending concurrently.
func (c *fakeClient) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
	})
}
