package models

// InterestEntry marks a user as waiting to be matched on a movie.
// Stored in Redis with a fixed TTL; silently expiring is normal.
type InterestEntry struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	MovieID   int    `json:"movie_id"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
}

// ChatSession is the authoritative record of an active two-party room.
// The per-user active-chat pointer is only a fast index into it and must
// agree with it; readers treat a pointer without a session as stale.
type ChatSession struct {
	ID        string `json:"id"`
	MovieID   int    `json:"movie_id"`
	User1ID   string `json:"user1_id"`
	User1Name string `json:"user1_name"`
	User2ID   string `json:"user2_id"`
	User2Name string `json:"user2_name"`
	StartedAt int64  `json:"started_at"` // unix milliseconds
	Active    bool   `json:"active"`
}

// HasParticipant reports whether userID occupies one of the two slots.
func (s *ChatSession) HasParticipant(userID string) bool {
	return userID != "" && (s.User1ID == userID || s.User2ID == userID)
}

// OtherParticipant returns the counterparty of userID, if any.
func (s *ChatSession) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case s.User1ID:
		return s.User2ID, s.User2ID != ""
	case s.User2ID:
		return s.User1ID, s.User1ID != ""
	default:
		return "", false
	}
}

// Complete reports whether both participant slots are populated.
func (s *ChatSession) Complete() bool {
	return s.User1ID != "" && s.User2ID != ""
}

// MatchResult is the outcome of a match request or a status poll.
type MatchResult struct {
	Matched   bool   `json:"matched"`
	SessionID string `json:"chat_room_id,omitempty"`
}

// ValidationResult reports whether a room is usable by the caller and,
// if not, a human-readable reason.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Reason  string `json:"reason,omitempty"`
	MovieID int    `json:"movie_id,omitempty"`
}
