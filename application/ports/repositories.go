package ports

import (
	"context"
	"time"

	"vdchat/domain/core/entities"
	"vdchat/domain/core/valueobjects"
	"vdchat/domain/events"
)

// ConversationRepository persists conversations and their graph snapshots.
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type ConversationRepository interface {
	// Create stores a new conversation whose transcript is initialText
	Create(ctx context.Context, userID, initialText string) (*entities.Conversation, error)

	// GetByID returns a NotFound error when id does not resolve
	GetByID(ctx context.Context, id int64) (*entities.Conversation, error)

	// AppendToTranscript atomically appends "\n"+text. A missing id yields a
	// NotFound error and nothing is written.
	AppendToTranscript(ctx context.Context, id int64, text string) (*entities.Conversation, error)

	// ListByUser returns the user's conversations, newest first
	ListByUser(ctx context.Context, userID string) ([]*entities.Conversation, error)

	// Search returns the user's conversations whose transcript contains query
	Search(ctx context.Context, userID, query string) ([]*entities.Conversation, error)

	// Delete removes a conversation and, by cascade, its snapshots
	Delete(ctx context.Context, id int64) error

	// CreateSnapshot stores an immutable graph snapshot for a conversation
	CreateSnapshot(ctx context.Context, conversationID int64, graph valueobjects.Graph) (*entities.KnowledgeGraphSnapshot, error)

	// ListSnapshots returns a conversation's snapshots, newest first
	ListSnapshots(ctx context.Context, conversationID int64) ([]*entities.KnowledgeGraphSnapshot, error)

	// ListSnapshotsByUser returns snapshots of all the user's conversations, newest first
	ListSnapshotsByUser(ctx context.Context, userID string) ([]*entities.KnowledgeGraphSnapshot, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// TopicGraph is the long-lived property graph of topics shared by all
// conversations. All merges are idempotent.
type TopicGraph interface {
	// MergeTopic creates the topic node if absent
	MergeTopic(ctx context.Context, name string) error

	// MergeRelationship creates both topic nodes and the typed edge if absent.
	// Edges are keyed by (source, target, type).
	MergeRelationship(ctx context.Context, rel valueobjects.Relationship) error

	// TagTopics adds conversationID to the conversation set of every named
	// topic. The union is applied atomically by the store.
	TagTopics(ctx context.Context, names []string, conversationID int64) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// ConversationLocker serializes turns that touch the same conversation.
type ConversationLocker interface {
	// Lock blocks until the conversation is held or ctx is done. The returned
	// function releases the lock and is safe to call once.
	Lock(ctx context.Context, conversationID int64) (unlock func(), err error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching read models. Values are stored
// as JSON so that remote backends can hold them.
type Cache interface {
	// Get decodes the cached value into dest and reports whether it was found
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores a value with the given TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix
	DeletePrefix(ctx context.Context, prefix string) error
}
