package matchmaker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"time"

	"cinematch/backend/internal/config"
	"cinematch/backend/internal/models"
)

// Store is the slice of storage the matchmaker needs. The external
// store only guarantees atomic single-key operations, so the multi-key
// "two pointers + one room" invariant is established by the ordered
// claim sequence in RequestMatch and validated defensively by readers.
type Store interface {
	SetInterest(ctx context.Context, entry models.InterestEntry) error
	FindInterests(ctx context.Context, movieID int) ([]models.InterestEntry, error)
	RemoveInterest(ctx context.Context, movieID int, userID string) error

	ActiveSession(ctx context.Context, userID string) (string, error)
	ClaimActiveSession(ctx context.Context, userID, sessionID string) (bool, error)
	ClearActiveSession(ctx context.Context, userID string) error

	SaveSession(ctx context.Context, session *models.ChatSession) error
	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)

	RecordSessionStart(ctx context.Context, session *models.ChatSession) error
}

// MatcherService pairs users waiting on the same movie into exclusive
// two-party sessions.
type MatcherService struct {
	Storage Store
}

// NewMatcherService creates a new Matcher.
func NewMatcherService(s Store) *MatcherService {
	return &MatcherService{Storage: s}
}

// NewSessionID returns a 32-hex-char unguessable room identifier.
func NewSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

// RequestMatch registers the caller's interest in a movie and tries to
// pair them with another waiting user. The active-chat pointer is the
// claim token: a candidate whose pointer we set first is ours; losing
// either SETNX means a concurrent matcher won, and we move on or adopt
// the session we were claimed into.
func (m *MatcherService) RequestMatch(ctx context.Context, userID, username string, movieID int) (models.MatchResult, error) {
	// A new match request implicitly abandons any stale pointer.
	current, err := m.Storage.ActiveSession(ctx, userID)
	if err != nil {
		return models.MatchResult{}, err
	}
	if current != "" {
		log.Printf("matchmaker: user %s still points at session %s, clearing before matching", userID, current)
		if err := m.Storage.ClearActiveSession(ctx, userID); err != nil {
			return models.MatchResult{}, err
		}
	}

	entry := models.InterestEntry{
		UserID:    userID,
		Username:  username,
		MovieID:   movieID,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := m.Storage.SetInterest(ctx, entry); err != nil {
		return models.MatchResult{}, err
	}

	candidates, err := m.Storage.FindInterests(ctx, movieID)
	if err != nil {
		return models.MatchResult{}, err
	}

	attempts := 0
	for _, candidate := range candidates {
		if candidate.UserID == userID {
			continue
		}
		if attempts >= config.MaxClaimAttempts {
			break
		}
		attempts++

		// Cheap pre-check before the claim write.
		pointer, err := m.Storage.ActiveSession(ctx, candidate.UserID)
		if err != nil {
			return models.MatchResult{}, err
		}
		if pointer != "" {
			continue
		}

		sessionID := NewSessionID()

		won, err := m.Storage.ClaimActiveSession(ctx, candidate.UserID, sessionID)
		if err != nil {
			return models.MatchResult{}, err
		}
		if !won {
			// Claimed by a concurrent matcher between scan and write.
			continue
		}

		selfWon, err := m.Storage.ClaimActiveSession(ctx, userID, sessionID)
		if err != nil {
			m.unwindClaim(ctx, candidate.UserID)
			return models.MatchResult{}, err
		}
		if !selfWon {
			// Someone matched us while we were claiming the candidate.
			// Unwind our half-built pairing and adopt theirs.
			m.unwindClaim(ctx, candidate.UserID)
			theirs, err := m.Storage.ActiveSession(ctx, userID)
			if err != nil {
				return models.MatchResult{}, err
			}
			if theirs != "" {
				log.Printf("matchmaker: user %s lost a claim race, joining session %s", userID, theirs)
				return models.MatchResult{Matched: true, SessionID: theirs}, nil
			}
			return models.MatchResult{}, nil
		}

		now := time.Now().UnixMilli()
		session := &models.ChatSession{
			ID:        sessionID,
			MovieID:   movieID,
			User1ID:   userID,
			User1Name: username,
			User2ID:   candidate.UserID,
			User2Name: candidate.Username,
			StartedAt: now,
			Active:    true,
		}
		if err := m.Storage.SaveSession(ctx, session); err != nil {
			m.unwindClaim(ctx, candidate.UserID)
			m.unwindClaim(ctx, userID)
			return models.MatchResult{}, err
		}

		// Audit trail is fire-and-forget; the pairing stands regardless.
		if err := m.Storage.RecordSessionStart(ctx, session); err != nil {
			log.Printf("matchmaker: failed to record session start %s: %v", sessionID, err)
		}

		if err := m.Storage.RemoveInterest(ctx, movieID, userID); err != nil {
			log.Printf("matchmaker: failed to remove interest for %s: %v", userID, err)
		}
		if err := m.Storage.RemoveInterest(ctx, movieID, candidate.UserID); err != nil {
			log.Printf("matchmaker: failed to remove interest for %s: %v", candidate.UserID, err)
		}

		log.Printf("matchmaker: paired %s and %s in session %s (movie %d)", userID, candidate.UserID, sessionID, movieID)
		return models.MatchResult{Matched: true, SessionID: sessionID}, nil
	}

	// Caller stays in the waiting pool; the interest entry's TTL bounds
	// how long.
	return models.MatchResult{}, nil
}

func (m *MatcherService) unwindClaim(ctx context.Context, userID string) {
	if err := m.Storage.ClearActiveSession(ctx, userID); err != nil {
		log.Printf("matchmaker: failed to unwind claim for %s: %v", userID, err)
	}
}

// PollStatus reports whether the user has been matched. A pointer whose
// session is missing or half-populated is stale; it is deleted and the
// user reported unmatched.
func (m *MatcherService) PollStatus(ctx context.Context, userID string) (models.MatchResult, error) {
	sessionID, err := m.Storage.ActiveSession(ctx, userID)
	if err != nil {
		return models.MatchResult{}, err
	}
	if sessionID == "" {
		return models.MatchResult{}, nil
	}

	session, err := m.Storage.GetSession(ctx, sessionID)
	if err != nil {
		return models.MatchResult{}, err
	}
	if session == nil || !session.Complete() {
		log.Printf("matchmaker: user %s held a stale pointer to session %s, clearing", userID, sessionID)
		if err := m.Storage.ClearActiveSession(ctx, userID); err != nil {
			return models.MatchResult{}, err
		}
		return models.MatchResult{}, nil
	}

	return models.MatchResult{Matched: true, SessionID: sessionID}, nil
}
