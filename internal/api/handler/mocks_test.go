package handler_test

import (
	"context"

	"cinematch/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) SaveUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockMatchService struct {
	mock.Mock
}

func (m *MockMatchService) RequestMatch(ctx context.Context, userID, username string, movieID int) (models.MatchResult, error) {
	args := m.Called(ctx, userID, username, movieID)
	return args.Get(0).(models.MatchResult), args.Error(1)
}

func (m *MockMatchService) PollStatus(ctx context.Context, userID string) (models.MatchResult, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.MatchResult), args.Error(1)
}

type MockLifecycleService struct {
	mock.Mock
}

func (m *MockLifecycleService) EndSession(ctx context.Context, sessionID, userID string) (bool, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLifecycleService) ResetUserState(ctx context.Context, userID string) {
	m.Called(ctx, userID)
}

type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockSessionStore) ValidateSession(ctx context.Context, sessionID, userID string) (models.ValidationResult, error) {
	args := m.Called(ctx, sessionID, userID)
	return args.Get(0).(models.ValidationResult), args.Error(1)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, roomID string, msg models.ChatMessage) (bool, error) {
	args := m.Called(ctx, roomID, msg)
	return args.Bool(0), args.Error(1)
}
