// Package mocks holds testify mocks for the application ports.
package mocks

import (
	"context"
	"time"

	"vdchat/application/ports"
	"vdchat/domain/core/entities"
	"vdchat/domain/core/valueobjects"
	"vdchat/domain/events"

	"github.com/stretchr/testify/mock"
)

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, userID, initialText string) (*entities.Conversation, error) {
	args := m.Called(ctx, userID, initialText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id int64) (*entities.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) AppendToTranscript(ctx context.Context, id int64, text string) (*entities.Conversation, error) {
	args := m.Called(ctx, id, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListByUser(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Search(ctx context.Context, userID, query string) ([]*entities.Conversation, error) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConversationRepository) CreateSnapshot(ctx context.Context, conversationID int64, graph valueobjects.Graph) (*entities.KnowledgeGraphSnapshot, error) {
	args := m.Called(ctx, conversationID, graph)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KnowledgeGraphSnapshot), args.Error(1)
}

func (m *MockConversationRepository) ListSnapshots(ctx context.Context, conversationID int64) ([]*entities.KnowledgeGraphSnapshot, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.KnowledgeGraphSnapshot), args.Error(1)
}

func (m *MockConversationRepository) ListSnapshotsByUser(ctx context.Context, userID string) ([]*entities.KnowledgeGraphSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.KnowledgeGraphSnapshot), args.Error(1)
}

func (m *MockConversationRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTopicGraph struct {
	mock.Mock
}

func (m *MockTopicGraph) MergeTopic(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockTopicGraph) MergeRelationship(ctx context.Context, rel valueobjects.Relationship) error {
	args := m.Called(ctx, rel)
	return args.Error(0)
}

func (m *MockTopicGraph) TagTopics(ctx context.Context, names []string, conversationID int64) error {
	args := m.Called(ctx, names, conversationID)
	return args.Error(0)
}

func (m *MockTopicGraph) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockTranscriptionGateway struct {
	mock.Mock
}

func (m *MockTranscriptionGateway) Transcribe(ctx context.Context, audio []byte, meta ports.AudioMetadata) (string, error) {
	args := m.Called(ctx, audio, meta)
	return args.String(0), args.Error(1)
}

type MockCompletionGateway struct {
	mock.Mock
}

func (m *MockCompletionGateway) GenerateResponse(ctx context.Context, userText string) (string, error) {
	args := m.Called(ctx, userText)
	return args.String(0), args.Error(1)
}

func (m *MockCompletionGateway) ExtractTopics(ctx context.Context, text string) []valueobjects.TopicRecord {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return []valueobjects.TopicRecord{}
	}
	return args.Get(0).([]valueobjects.TopicRecord)
}

func (m *MockCompletionGateway) Summarize(ctx context.Context, transcript string) (string, error) {
	args := m.Called(ctx, transcript)
	return args.String(0), args.Error(1)
}

func (m *MockCompletionGateway) AnalyzeSentiment(ctx context.Context, text string) ports.Sentiment {
	args := m.Called(ctx, text)
	return args.Get(0).(ports.Sentiment)
}

type MockSynthesisGateway struct {
	mock.Mock
}

func (m *MockSynthesisGateway) Synthesize(ctx context.Context, text string, voice ports.VoiceConfig) ([]byte, string, error) {
	args := m.Called(ctx, text, voice)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	args := m.Called(ctx, domainEvents)
	return args.Error(0)
}

// NoopLocker grants every lock immediately.
type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, conversationID int64) (func(), error) {
	return func() {}, nil
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	args := m.Called(ctx, key, dest)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) error {
	args := m.Called(ctx, prefix)
	return args.Error(0)
}
