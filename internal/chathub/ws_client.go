package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"cinematch/backend/internal/config"
	"cinematch/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// WebSocketClient implements the chathub.Client interface on top of a
// gorilla/websocket connection. A connection moves through three
// states: unauthenticated (only "authenticate" is accepted), then
// authenticated (may "join_room"), then joined (may "chat_message" and
// "leave_room"). All state is owned by the readPump goroutine.
type WebSocketClient struct {
	connID   string
	userID   string
	username string
	roomID   string

	Conn *websocket.Conn
	Hub  *ManagerService
	Send chan models.ServerEvent

	// done signals shutdown to the write pump. Send is never closed:
	// the read pump and the hub both write to it concurrently, so
	// closing it would race those sends.
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketClient wraps an upgraded connection. The connection
// starts unauthenticated; identity arrives in-band.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		connID: uuid.New().String(),
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.ServerEvent, 256),
		done:   make(chan struct{}),
	}
}

func (c *WebSocketClient) ConnID() string   { return c.connID }
func (c *WebSocketClient) UserID() string   { return c.userID }
func (c *WebSocketClient) Username() string { return c.username }
func (c *WebSocketClient) RoomID() string   { return c.roomID }

func (c *WebSocketClient) SendChannel() chan<- models.ServerEvent { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops outbound delivery, which in turn shuts the write pump
// and the underlying connection down.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.handleLeave()
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("chathub: conn %s read error: %v", c.connID, err)
			}
			break
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.sendError("invalid event payload")
			continue
		}

		switch ev.Type {
		case models.EventAuthenticate:
			c.handleAuthenticate(ev)
		case models.EventJoinRoom:
			c.handleJoinRoom(ev)
		case models.EventChatMessage:
			c.handleChatMessage(ev)
		case models.EventLeaveRoom:
			c.handleLeave()
		default:
			c.sendError("unknown event type")
		}
	}
}

func (c *WebSocketClient) handleAuthenticate(ev models.ClientEvent) {
	userID, username, err := c.Hub.Verify(ev.Token)
	if err != nil {
		log.Printf("chathub: conn %s auth failed: %v", c.connID, err)
		c.send(models.ServerEvent{Type: models.EventAuthError, Error: "invalid token"})
		return
	}

	c.userID = userID
	c.username = username
	c.send(models.ServerEvent{Type: models.EventAuthenticated})
	log.Printf("chathub: conn %s authenticated as %s (%s)", c.connID, username, userID)
}

func (c *WebSocketClient) handleJoinRoom(ev models.ClientEvent) {
	if c.userID == "" {
		c.sendError("authentication required")
		return
	}
	if ev.RoomID == "" {
		c.sendError("chat room id is required")
		return
	}
	if c.roomID != "" && c.roomID != ev.RoomID {
		c.sendError("leave the current chat room first")
		return
	}

	ctx := context.Background()

	// Membership check: the caller's own pointer must name this room.
	pointer, err := c.Hub.Storage.ActiveSession(ctx, c.userID)
	if err != nil {
		c.sendError("chat service unavailable")
		return
	}
	if pointer != ev.RoomID {
		c.sendError("you are not part of this chat room")
		return
	}

	session, err := c.Hub.Storage.GetSession(ctx, ev.RoomID)
	if err != nil {
		c.sendError("chat service unavailable")
		return
	}
	if session == nil {
		c.sendError("chat room not found")
		return
	}

	// Registration precedes the replay read: a message published in
	// the gap arrives via both the fan-out and the replay (clients
	// drop duplicates by id), whereas the reverse order would lose it.
	rejoin := c.roomID == ev.RoomID
	c.roomID = ev.RoomID
	c.Hub.RegisterCh <- c

	// Persist and fan out the join notice. The origin conn id keeps the
	// joiner from seeing it twice; it reaches them in the replay below.
	if !rejoin {
		notice := models.NewSystemMessage(ev.RoomID, fmt.Sprintf("%s joined the chat", c.username))
		if _, err := c.Hub.Storage.AppendMessage(ctx, ev.RoomID, notice); err != nil {
			log.Printf("chathub: failed to store join notice for room %s: %v", ev.RoomID, err)
		}
		if err := c.Hub.Storage.PublishEnvelope(ctx, models.Envelope{RoomID: ev.RoomID, Message: notice, OriginConnID: c.connID}); err != nil {
			log.Printf("chathub: failed to publish join notice for room %s: %v", ev.RoomID, err)
		}
	}

	history, err := c.Hub.Storage.RecentMessages(ctx, ev.RoomID, config.ReplayLimit)
	if err != nil {
		log.Printf("chathub: failed to load history for room %s: %v", ev.RoomID, err)
		history = nil
	}
	c.send(models.ServerEvent{
		Type:     models.EventChatHistory,
		RoomID:   ev.RoomID,
		MovieID:  session.MovieID,
		Messages: history,
	})
}

func (c *WebSocketClient) handleChatMessage(ev models.ClientEvent) {
	if c.userID == "" {
		c.sendError("authentication required")
		return
	}
	if c.roomID == "" {
		c.sendError("join a chat room first")
		return
	}
	// Rune count, matching the HTTP boundary's validation.
	n := utf8.RuneCountInString(ev.Text)
	if n == 0 || n > config.MaxMessageLen {
		c.sendError("message text must be between 1 and 1000 characters")
		return
	}

	ctx := context.Background()
	msg := models.NewMessage(c.roomID, c.userID, c.username, ev.Text)

	ok, err := c.Hub.Storage.AppendMessage(ctx, c.roomID, msg)
	if err != nil {
		c.sendError("failed to send message")
		return
	}
	if !ok {
		c.sendError("chat room not found")
		return
	}

	// Echo to the sender synchronously; the bus carries it to everyone
	// else, with this connection excluded as origin.
	c.send(models.ServerEvent{Type: models.EventMessage, RoomID: c.roomID, Message: &msg})

	if err := c.Hub.Storage.PublishEnvelope(ctx, models.Envelope{RoomID: c.roomID, Message: msg, OriginConnID: c.connID}); err != nil {
		log.Printf("chathub: failed to publish message %s: %v", msg.ID, err)
	}
}

// handleLeave detaches the connection from its room and tells the
// counterparty. Leaving does not deactivate the session; that is the
// lifecycle controller's call.
func (c *WebSocketClient) handleLeave() {
	if c.roomID == "" {
		return
	}
	roomID := c.roomID
	c.roomID = ""

	notice := models.NewSystemMessage(roomID, fmt.Sprintf("%s left the chat", c.username))
	if err := c.Hub.Storage.PublishEnvelope(context.Background(), models.Envelope{RoomID: roomID, Message: notice, OriginConnID: c.connID}); err != nil {
		log.Printf("chathub: failed to publish leave notice for room %s: %v", roomID, err)
	}

	c.Hub.UnregisterCh <- c
}

func (c *WebSocketClient) send(ev models.ServerEvent) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.Send <- ev:
	default:
		log.Printf("chathub: dropping event %s for slow conn %s", ev.Type, c.connID)
	}
}

func (c *WebSocketClient) sendError(msg string) {
	c.send(models.ServerEvent{Type: models.EventError, Error: msg})
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				log.Printf("chathub: conn %s write error: %v", c.connID, err)
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
