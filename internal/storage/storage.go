package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strconv"

	"cinematch/backend/internal/config"
	"cinematch/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Redis key layout. Every ephemeral record carries a TTL so abandoned
// flows unwind on their own.
const (
	// BroadcastChannel is the global pub/sub channel carrying message
	// envelopes between server processes.
	BroadcastChannel = "chat:messages"
)

func interestKey(movieID int, userID string) string {
	return "interest:" + strconv.Itoa(movieID) + ":" + userID
}

func pointerKey(userID string) string {
	return "user:" + userID + ":active_chat"
}

func roomKey(sessionID string) string {
	return "chat_room:" + sessionID
}

func messagesKey(sessionID string) string {
	return "messages:" + sessionID
}

// Service talks to the two external collaborators: Redis for all
// ephemeral matchmaking/relay state and PostgreSQL for the durable
// audit trail. Consumers depend on the narrow interfaces they declare,
// not on this struct.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, Redis: rdb}
}

// --- Interest pool ---

// SetInterest inserts or refreshes the user's waiting entry for a movie.
func (s *Service) SetInterest(ctx context.Context, entry models.InterestEntry) error {
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, interestKey(entry.MovieID, entry.UserID), b, config.InterestTTL).Err()
}

// FindInterests returns all live waiting entries for a movie, oldest
// first. Entries that vanish or fail to parse mid-scan are skipped;
// TTL expiry is a normal outcome, not a fault.
func (s *Service) FindInterests(ctx context.Context, movieID int) ([]models.InterestEntry, error) {
	var entries []models.InterestEntry

	iter := s.Redis.Scan(ctx, 0, interestKey(movieID, "*"), 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.Redis.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between scan and read
		}
		if err != nil {
			return nil, err
		}

		var entry models.InterestEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Printf("storage: skipping unreadable interest entry %s: %v", iter.Val(), err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt != entries[j].CreatedAt {
			return entries[i].CreatedAt < entries[j].CreatedAt
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}

// RemoveInterest deletes one waiting entry. Absence is not an error.
func (s *Service) RemoveInterest(ctx context.Context, movieID int, userID string) error {
	return s.Redis.Del(ctx, interestKey(movieID, userID)).Err()
}

// ClearInterests deletes every waiting entry for a user, any movie.
func (s *Service) ClearInterests(ctx context.Context, userID string) error {
	iter := s.Redis.Scan(ctx, 0, "interest:*:"+userID, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.Redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// --- Active session pointer (the claim token) ---

// ActiveSession returns the session the user is currently bound to, or
// "" if the user is unmatched.
func (s *Service) ActiveSession(ctx context.Context, userID string) (string, error) {
	v, err := s.Redis.Get(ctx, pointerKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// ClaimActiveSession atomically binds the user to sessionID if and only
// if no pointer exists. The winner of a matchmaking race is whoever
// claims first; losers observe false.
func (s *Service) ClaimActiveSession(ctx context.Context, userID, sessionID string) (bool, error) {
	return s.Redis.SetNX(ctx, pointerKey(userID), sessionID, config.PointerTTL).Result()
}

// ClearActiveSession removes the user's pointer. Absence is not an error.
func (s *Service) ClearActiveSession(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, pointerKey(userID)).Err()
}

// --- Chat session store ---

// SaveSession writes the room hash with the session TTL.
func (s *Service) SaveSession(ctx context.Context, session *models.ChatSession) error {
	active := "0"
	if session.Active {
		active = "1"
	}
	fields := map[string]interface{}{
		"movie_id":   strconv.Itoa(session.MovieID),
		"user1":      session.User1ID,
		"user1_name": session.User1Name,
		"user2":      session.User2ID,
		"user2_name": session.User2Name,
		"started_at": strconv.FormatInt(session.StartedAt, 10),
		"active":     active,
	}
	if err := s.Redis.HSet(ctx, roomKey(session.ID), fields).Err(); err != nil {
		return err
	}
	return s.Redis.Expire(ctx, roomKey(session.ID), config.SessionTTL).Err()
}

// GetSession loads a room, or nil if it does not exist.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	fields, err := s.Redis.HGetAll(ctx, roomKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	movieID, _ := strconv.Atoi(fields["movie_id"])
	startedAt, _ := strconv.ParseInt(fields["started_at"], 10, 64)
	return &models.ChatSession{
		ID:        sessionID,
		MovieID:   movieID,
		User1ID:   fields["user1"],
		User1Name: fields["user1_name"],
		User2ID:   fields["user2"],
		User2Name: fields["user2_name"],
		StartedAt: startedAt,
		Active:    fields["active"] == "1",
	}, nil
}

// SessionExists reports whether the room hash is present.
func (s *Service) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.Redis.Exists(ctx, roomKey(sessionID)).Result()
	return n > 0, err
}

// DeactivateSession flips the room inactive without deleting it, so a
// late joiner observes "ended" rather than "not found" until the TTL
// clears the record.
func (s *Service) DeactivateSession(ctx context.Context, sessionID string) error {
	exists, err := s.SessionExists(ctx, sessionID)
	if err != nil || !exists {
		return err
	}
	return s.Redis.HSet(ctx, roomKey(sessionID), "active", "0").Err()
}

// historyWindow is the LTRIM/LRANGE window keeping the newest n
// entries of the newest-first log: trimming to it evicts the oldest
// entries once the log exceeds n.
func historyWindow(n int) (start, stop int64) {
	return 0, int64(n) - 1
}

// decodeMessages turns a newest-first raw log slice into oldest-first
// messages. Unreadable entries are skipped, not fatal.
func decodeMessages(sessionID string, raw []string) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			log.Printf("storage: skipping unreadable message in room %s: %v", sessionID, err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

// AppendMessage pushes a message onto the room's bounded log and
// refreshes the room TTLs. Returns false if the room does not exist.
func (s *Service) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) (bool, error) {
	exists, err := s.SessionExists(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return false, err
	}

	key := messagesKey(sessionID)
	if err := s.Redis.LPush(ctx, key, b).Err(); err != nil {
		return false, err
	}
	start, stop := historyWindow(config.HistoryCap)
	if err := s.Redis.LTrim(ctx, key, start, stop).Err(); err != nil {
		return false, err
	}
	// Session activity keeps both the log and the room alive.
	if err := s.Redis.Expire(ctx, key, config.SessionTTL).Err(); err != nil {
		return false, err
	}
	return true, s.Redis.Expire(ctx, roomKey(sessionID), config.SessionTTL).Err()
}

// RecentMessages returns up to limit stored messages, oldest first.
func (s *Service) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	start, stop := historyWindow(limit)
	raw, err := s.Redis.LRange(ctx, messagesKey(sessionID), start, stop).Result()
	if err != nil {
		return nil, err
	}
	return decodeMessages(sessionID, raw), nil
}

// ValidateSession confirms the room is usable by userID: it exists,
// both slots are populated, the caller is a participant, and the
// counterparty's pointer still names this room. A structurally present
// room whose other half was cleaned up is treated as invalid.
func (s *Service) ValidateSession(ctx context.Context, sessionID, userID string) (models.ValidationResult, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if session == nil {
		return models.ValidationResult{Valid: false, Reason: "chat room does not exist"}, nil
	}
	if !session.Complete() {
		return models.ValidationResult{Valid: false, Reason: "chat room is missing a participant"}, nil
	}
	if !session.HasParticipant(userID) {
		return models.ValidationResult{Valid: false, Reason: "user is not part of this chat room"}, nil
	}

	otherID, _ := session.OtherParticipant(userID)
	otherPointer, err := s.ActiveSession(ctx, otherID)
	if err != nil {
		return models.ValidationResult{}, err
	}
	if otherPointer != sessionID {
		return models.ValidationResult{Valid: false, Reason: "other user is no longer in this chat room"}, nil
	}

	return models.ValidationResult{Valid: true, MovieID: session.MovieID}, nil
}

// --- Cross-process fan-out bus ---

// PublishEnvelope broadcasts a message envelope to every process.
func (s *Service) PublishEnvelope(ctx context.Context, env models.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, BroadcastChannel, b).Err()
}

// SubscribeEnvelopes subscribes to the global fan-out channel and
// returns decoded envelopes. The channel closes when ctx is cancelled
// or the subscription drops.
func (s *Service) SubscribeEnvelopes(ctx context.Context) <-chan models.Envelope {
	sub := s.Redis.Subscribe(ctx, BroadcastChannel)
	out := make(chan models.Envelope, 64)

	go func() {
		defer close(out)
		defer sub.Close()

		for msg := range sub.Channel() {
			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("storage: dropping unreadable envelope: %v", err)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
