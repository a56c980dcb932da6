package queries

import (
	"fmt"
	"strings"
	"time"

	"vdchat/domain/core/entities"
	"vdchat/domain/core/valueobjects"
	pkgerrors "vdchat/pkg/errors"
)

// ListConversationsQuery lists a user's conversations, optionally filtered by
// a transcript substring
type ListConversationsQuery struct {
	UserID string
	Search string
}

// Validate validates the ListConversationsQuery
func (q ListConversationsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return pkgerrors.NewValidationError("user_id is required")
	}
	return nil
}

func (q ListConversationsQuery) CacheKey() string {
	return fmt.Sprintf("%slist:%s", UserKeyPrefix(q.UserID), q.Search)
}

func (q ListConversationsQuery) NewResult() interface{} { return &ConversationListResult{} }

// GetConversationQuery fetches one conversation with its transcript
type GetConversationQuery struct {
	ConversationID int64
}

func (q GetConversationQuery) Validate() error {
	return validateConversationID(q.ConversationID)
}

func (q GetConversationQuery) CacheKey() string {
	return ConversationKeyPrefix(q.ConversationID) + "detail"
}

func (q GetConversationQuery) NewResult() interface{} { return &ConversationResult{} }

// ListSnapshotsQuery lists the graph snapshots of one conversation
type ListSnapshotsQuery struct {
	ConversationID int64
}

func (q ListSnapshotsQuery) Validate() error {
	return validateConversationID(q.ConversationID)
}

func (q ListSnapshotsQuery) CacheKey() string {
	return ConversationKeyPrefix(q.ConversationID) + "snapshots"
}

func (q ListSnapshotsQuery) NewResult() interface{} { return &SnapshotListResult{} }

// ListUserSnapshotsQuery lists the graph snapshots of all of a user's conversations
type ListUserSnapshotsQuery struct {
	UserID string
}

func (q ListUserSnapshotsQuery) Validate() error {
	if strings.TrimSpace(q.UserID) == "" {
		return pkgerrors.NewValidationError("user_id is required")
	}
	return nil
}

func (q ListUserSnapshotsQuery) CacheKey() string {
	return UserKeyPrefix(q.UserID) + "snapshots"
}

func (q ListUserSnapshotsQuery) NewResult() interface{} { return &SnapshotListResult{} }

// SummarizeConversationQuery asks the model for a summary of a transcript.
// Summaries are not cached.
type SummarizeConversationQuery struct {
	ConversationID int64
}

func (q SummarizeConversationQuery) Validate() error {
	return validateConversationID(q.ConversationID)
}

func validateConversationID(id int64) error {
	if id <= 0 {
		return pkgerrors.NewValidationError("conversation_id must be a positive integer")
	}
	return nil
}

// ConversationResult represents a conversation in query results
type ConversationResult struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Transcript string    `json:"transcript"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationListResult represents a list of conversations
type ConversationListResult struct {
	Conversations []ConversationResult `json:"conversations"`
	Total         int                  `json:"total"`
}

// SnapshotResult represents one stored knowledge graph
type SnapshotResult struct {
	ID             int64              `json:"id"`
	ConversationID int64              `json:"conversation_id"`
	GraphData      valueobjects.Graph `json:"graph_data"`
	CreatedAt      time.Time          `json:"created_at"`
}

// SnapshotListResult represents a list of knowledge graphs
type SnapshotListResult struct {
	Snapshots []SnapshotResult `json:"knowledge_graphs"`
	Total     int              `json:"total"`
}

// SummaryResult represents a conversation summary
type SummaryResult struct {
	ConversationID int64  `json:"conversation_id"`
	Summary        string `json:"summary"`
}

func NewConversationResult(c *entities.Conversation) ConversationResult {
	return ConversationResult{
		ID:         c.ID(),
		UserID:     c.UserID(),
		Transcript: c.Transcript(),
		CreatedAt:  c.CreatedAt(),
	}
}

func NewSnapshotResult(s *entities.KnowledgeGraphSnapshot) SnapshotResult {
	return SnapshotResult{
		ID:             s.ID(),
		ConversationID: s.ConversationID(),
		GraphData:      s.Graph(),
		CreatedAt:      s.CreatedAt(),
	}
}
