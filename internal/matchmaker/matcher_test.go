package matchmaker_test

import (
	"context"
	"testing"

	"cinematch/backend/internal/matchmaker"
	"cinematch/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func entry(userID, username string, movieID int, createdAt int64) models.InterestEntry {
	return models.InterestEntry{UserID: userID, Username: username, MovieID: movieID, CreatedAt: createdAt}
}

// TestRequestMatch_NoCandidates verifies a lone user is left waiting in
// the pool rather than matched with themselves.
func TestRequestMatch_NoCandidates(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("", nil).Once()
	s.On("SetInterest", mock.Anything, mock.AnythingOfType("models.InterestEntry")).Return(nil).Once()
	s.On("FindInterests", mock.Anything, 42).Return([]models.InterestEntry{
		entry("alice", "Alice", 42, 100),
	}, nil).Once()

	result, err := m.RequestMatch(context.Background(), "alice", "Alice", 42)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	assert.Empty(t, result.SessionID)
	s.AssertNotCalled(t, "ClaimActiveSession", mock.Anything, mock.Anything, mock.Anything)
	s.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
	s.AssertExpectations(t)
}

// TestRequestMatch_PairsTwoUsers covers the happy path: both claim
// tokens are won, the session is created and both pool entries removed.
func TestRequestMatch_PairsTwoUsers(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("", nil).Once()
	s.On("SetInterest", mock.Anything, mock.AnythingOfType("models.InterestEntry")).Return(nil).Once()
	s.On("FindInterests", mock.Anything, 42).Return([]models.InterestEntry{
		entry("bob", "Bob", 42, 50),
		entry("alice", "Alice", 42, 100),
	}, nil).Once()
	s.On("ActiveSession", mock.Anything, "bob").Return("", nil).Once()
	s.On("ClaimActiveSession", mock.Anything, "bob", mock.AnythingOfType("string")).Return(true, nil).Once()
	s.On("ClaimActiveSession", mock.Anything, "alice", mock.AnythingOfType("string")).Return(true, nil).Once()

	var saved *models.ChatSession
	s.On("SaveSession", mock.Anything, mock.AnythingOfType("*models.ChatSession")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*models.ChatSession) }).
		Return(nil).Once()
	s.On("RecordSessionStart", mock.Anything, mock.AnythingOfType("*models.ChatSession")).Return(nil).Once()
	s.On("RemoveInterest", mock.Anything, 42, "alice").Return(nil).Once()
	s.On("RemoveInterest", mock.Anything, 42, "bob").Return(nil).Once()

	result, err := m.RequestMatch(context.Background(), "alice", "Alice", 42)

	assert.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Len(t, result.SessionID, 32, "session id should be 32 hex chars")
	if assert.NotNil(t, saved) {
		assert.Equal(t, result.SessionID, saved.ID)
		assert.Equal(t, 42, saved.MovieID)
		assert.Equal(t, "alice", saved.User1ID)
		assert.Equal(t, "bob", saved.User2ID)
		assert.True(t, saved.Active)
	}
	s.AssertExpectations(t)
}

// TestRequestMatch_ClearsStalePointer verifies that a new match request
// implicitly abandons a leftover active-chat pointer.
func TestRequestMatch_ClearsStalePointer(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("old-session", nil).Once()
	s.On("ClearActiveSession", mock.Anything, "alice").Return(nil).Once()
	s.On("SetInterest", mock.Anything, mock.AnythingOfType("models.InterestEntry")).Return(nil).Once()
	s.On("FindInterests", mock.Anything, 42).Return([]models.InterestEntry{
		entry("alice", "Alice", 42, 100),
	}, nil).Once()

	result, err := m.RequestMatch(context.Background(), "alice", "Alice", 42)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	s.AssertExpectations(t)
}

// TestRequestMatch_SkipsBusyCandidate verifies a candidate who already
// holds a pointer is never claimed.
func TestRequestMatch_SkipsBusyCandidate(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("", nil).Once()
	s.On("SetInterest", mock.Anything, mock.AnythingOfType("models.InterestEntry")).Return(nil).Once()
	s.On("FindInterests", mock.Anything, 42).Return([]models.InterestEntry{
		entry("bob", "Bob", 42, 50),
		entry("alice", "Alice", 42, 100),
	}, nil).Once()
	s.On("ActiveSession", mock.Anything, "bob").Return("someone-elses-session", nil).Once()

	result, err := m.RequestMatch(context.Background(), "alice", "Alice", 42)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	s.AssertNotCalled(t, "ClaimActiveSession", mock.Anything, mock.Anything, mock.Anything)
	s.AssertExpectations(t)
}

// TestRequestMatch_LostCandidateClaim verifies that losing the SETNX on
// a candidate (claimed between scan and write) moves on instead of
// double-booking, and that retries are bounded.
func TestRequestMatch_LostCandidateClaim(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	candidates := []models.InterestEntry{
		entry("bob", "Bob", 42, 10),
		entry("carol", "Carol", 42, 20),
		entry("dave", "Dave", 42, 30),
		entry("erin", "Erin", 42, 40),
		entry("alice", "Alice", 42, 100),
	}

	s.On("ActiveSession", mock.Anything, "alice").Return("", nil).Once()
	s.On("SetInterest", mock.Anything, mock.AnythingOfType("models.InterestEntry")).Return(nil).Once()
	s.On("FindInterests", mock.Anything, 42).Return(candidates, nil).Once()
	s.On("ActiveSession", mock.Anything, mock.AnythingOfType("string")).Return("", nil)
	s.On("ClaimActiveSession", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).Return(false, nil)

	result, err := m.RequestMatch(context.Background(), "alice", "Alice", 42)

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	// Bounded retry: only MaxClaimAttempts candidates are tried.
	s.AssertNumberOfCalls(t, "ClaimActiveSession", 3)
	s.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
}

// TestRequestMatch_LostOwnClaim verifies the unwind path: if a
// concurrent matcher claims the caller first, the half-built pairing is
// rolled back and the caller adopts the session it was claimed into.
func TestRequestMatch_LostOwnClaim(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("", nil).Once()
	s.On("SetInterest", mock.Anything, mock.AnythingOfType("models.InterestEntry")).Return(nil).Once()
	s.On("FindInterests", mock.Anything, 42).Return([]models.InterestEntry{
		entry("bob", "Bob", 42, 50),
		entry("alice", "Alice", 42, 100),
	}, nil).Once()
	s.On("ActiveSession", mock.Anything, "bob").Return("", nil).Once()
	s.On("ClaimActiveSession", mock.Anything, "bob", mock.AnythingOfType("string")).Return(true, nil).Once()
	s.On("ClaimActiveSession", mock.Anything, "alice", mock.AnythingOfType("string")).Return(false, nil).Once()
	s.On("ClearActiveSession", mock.Anything, "bob").Return(nil).Once()
	s.On("ActiveSession", mock.Anything, "alice").Return("winners-session", nil).Once()

	result, err := m.RequestMatch(context.Background(), "alice", "Alice", 42)

	assert.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "winners-session", result.SessionID)
	s.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything)
	s.AssertExpectations(t)
}

func TestPollStatus_Unmatched(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("", nil).Once()

	result, err := m.PollStatus(context.Background(), "alice")

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	s.AssertExpectations(t)
}

// TestPollStatus_StalePointerSelfHeals verifies a pointer with no
// backing session is deleted rather than reported.
func TestPollStatus_StalePointerSelfHeals(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("ghost-session", nil).Once()
	s.On("GetSession", mock.Anything, "ghost-session").Return(nil, nil).Once()
	s.On("ClearActiveSession", mock.Anything, "alice").Return(nil).Once()

	result, err := m.PollStatus(context.Background(), "alice")

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	s.AssertExpectations(t)
}

func TestPollStatus_HalfPopulatedSessionIsStale(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("half-session", nil).Once()
	s.On("GetSession", mock.Anything, "half-session").Return(&models.ChatSession{ID: "half-session", User1ID: "alice"}, nil).Once()
	s.On("ClearActiveSession", mock.Anything, "alice").Return(nil).Once()

	result, err := m.PollStatus(context.Background(), "alice")

	assert.NoError(t, err)
	assert.False(t, result.Matched)
	s.AssertExpectations(t)
}

func TestPollStatus_Matched(t *testing.T) {
	s := new(MockStorage)
	m := matchmaker.NewMatcherService(s)

	s.On("ActiveSession", mock.Anything, "alice").Return("live-session", nil).Once()
	s.On("GetSession", mock.Anything, "live-session").Return(&models.ChatSession{
		ID: "live-session", User1ID: "alice", User2ID: "bob", Active: true,
	}, nil).Once()

	result, err := m.PollStatus(context.Background(), "alice")

	assert.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "live-session", result.SessionID)
	s.AssertExpectations(t)
}
