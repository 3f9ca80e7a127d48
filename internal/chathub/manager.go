package chathub

import (
	"context"
	"log"

	"cinematch/backend/internal/models"
)

// Store is the slice of storage the relay needs.
type Store interface {
	ActiveSession(ctx context.Context, userID string) (string, error)
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) (bool, error)
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
	PublishEnvelope(ctx context.Context, env models.Envelope) error
	SubscribeEnvelopes(ctx context.Context) <-chan models.Envelope
}

// TokenVerifier resolves a credential token into a user identity.
type TokenVerifier func(token string) (userID, username string, err error)

// ManagerService is the per-process fan-out registry: it tracks which
// live connections belong to which room and delivers envelopes arriving
// from the cross-process bus. The room maps are owned exclusively by
// the Run goroutine; connection goroutines talk to it through the
// register/unregister channels and never touch the maps directly.
type ManagerService struct {
	RegisterCh   chan Client
	UnregisterCh chan Client

	Storage Store
	Verify  TokenVerifier

	rooms      map[string]map[Client]bool
	membership map[Client]string
}

// NewManagerService creates the hub. Call Run in its own goroutine.
func NewManagerService(s Store, verify TokenVerifier) *ManagerService {
	return &ManagerService{
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		Storage:      s,
		Verify:       verify,
		rooms:        make(map[string]map[Client]bool),
		membership:   make(map[Client]string),
	}
}

// Run is the hub's dispatcher loop. It multiplexes local membership
// changes with envelopes from the cross-process bus and returns when
// ctx is cancelled.
func (m *ManagerService) Run(ctx context.Context) {
	envelopes := m.Storage.SubscribeEnvelopes(ctx)
	log.Println("chathub: manager started")

	for {
		select {
		case client := <-m.RegisterCh:
			m.addClient(client)

		case client := <-m.UnregisterCh:
			m.removeClient(client)

		case env, ok := <-envelopes:
			if !ok {
				log.Println("chathub: fan-out subscription closed")
				return
			}
			m.fanout(env)

		case <-ctx.Done():
			return
		}
	}
}

func (m *ManagerService) addClient(client Client) {
	roomID := client.RoomID()
	if roomID == "" {
		return
	}
	if _, ok := m.rooms[roomID]; !ok {
		m.rooms[roomID] = make(map[Client]bool)
	}
	m.rooms[roomID][client] = true
	m.membership[client] = roomID
	log.Printf("chathub: conn %s (%s) joined room %s", client.ConnID(), client.UserID(), roomID)
}

func (m *ManagerService) removeClient(client Client) {
	roomID, ok := m.membership[client]
	if !ok {
		return
	}
	delete(m.membership, client)
	delete(m.rooms[roomID], client)
	if len(m.rooms[roomID]) == 0 {
		delete(m.rooms, roomID)
	}
	log.Printf("chathub: conn %s left room %s", client.ConnID(), roomID)
}

// fanout delivers an envelope to every local connection in its room
// except the origin connection, which already received the message
// synchronously on its own process. Rooms with no local members are a
// no-op. A connection whose send buffer is full is evicted rather than
// allowed to stall the loop.
func (m *ManagerService) fanout(env models.Envelope) {
	for client := range m.rooms[env.RoomID] {
		if client.ConnID() == env.OriginConnID {
			continue
		}
		msg := env.Message
		ev := models.ServerEvent{Type: models.EventMessage, RoomID: env.RoomID, Message: &msg}
		select {
		case client.SendChannel() <- ev:
		default:
			log.Printf("chathub: evicting slow conn %s from room %s", client.ConnID(), env.RoomID)
			m.removeClient(client)
			client.Close()
		}
	}
}

// Broadcast appends a message to the room's log and publishes it on the
// bus with no origin connection, so every live connection of both
// participants receives it. Used by the request/response boundary.
// Returns false if the room does not exist.
func (m *ManagerService) Broadcast(ctx context.Context, roomID string, msg models.ChatMessage) (bool, error) {
	ok, err := m.Storage.AppendMessage(ctx, roomID, msg)
	if err != nil || !ok {
		return ok, err
	}
	return true, m.Storage.PublishEnvelope(ctx, models.Envelope{RoomID: roomID, Message: msg})
}
