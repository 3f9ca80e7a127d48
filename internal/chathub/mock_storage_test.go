package chathub_test

import (
	"context"

	"cinematch/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock

	// envelopes is handed back by SubscribeEnvelopes so tests can feed
	// the hub's dispatcher directly.
	envelopes chan models.Envelope
}

func NewMockStorage() *MockStorage {
	return &MockStorage{envelopes: make(chan models.Envelope, 16)}
}

func (m *MockStorage) ActiveSession(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatSession), args.Error(1)
}

func (m *MockStorage) AppendMessage(ctx context.Context, sessionID string, msg models.ChatMessage) (bool, error) {
	args := m.Called(ctx, sessionID, msg)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) RecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ChatMessage), args.Error(1)
}

func (m *MockStorage) PublishEnvelope(ctx context.Context, env models.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockStorage) SubscribeEnvelopes(ctx context.Context) <-chan models.Envelope {
	return m.envelopes
}
