package entities

import (
	"strings"
	"time"

	"vdchat/domain/core/valueobjects"
	pkgerrors "vdchat/pkg/errors"
)

// Conversation is a sequence of turns between a user and the assistant.
// The transcript is append-only: the store joins lines with "\n" and never
// rewrites existing text.
type Conversation struct {
	id         int64
	userID     string
	transcript string
	createdAt  time.Time
}

// NewConversation creates an unsaved conversation whose transcript starts
// with firstLine. The store assigns the id.
func NewConversation(userID, firstLine string) (*Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.NewValidationError("user_id cannot be empty")
	}

	return &Conversation{
		userID:     userID,
		transcript: firstLine,
		createdAt:  time.Now().UTC(),
	}, nil
}

// ReconstructConversation rebuilds a conversation from stored data
func ReconstructConversation(id int64, userID, transcript string, createdAt time.Time) *Conversation {
	return &Conversation{
		id:         id,
		userID:     userID,
		transcript: transcript,
		createdAt:  createdAt,
	}
}

func (c *Conversation) ID() int64            { return c.id }
func (c *Conversation) UserID() string       { return c.userID }
func (c *Conversation) Transcript() string   { return c.transcript }
func (c *Conversation) CreatedAt() time.Time { return c.createdAt }

// FormatLine prefixes text with a speaker label such as "User: ".
func FormatLine(prefix, text string) string {
	return prefix + text
}

// KnowledgeGraphSnapshot is an immutable record of the graph produced by
// one turn of a conversation.
type KnowledgeGraphSnapshot struct {
	id             int64
	conversationID int64
	graph          valueobjects.Graph
	createdAt      time.Time
}

// ReconstructSnapshot rebuilds a snapshot from stored data
func ReconstructSnapshot(id, conversationID int64, graph valueobjects.Graph, createdAt time.Time) *KnowledgeGraphSnapshot {
	return &KnowledgeGraphSnapshot{
		id:             id,
		conversationID: conversationID,
		graph:          graph,
		createdAt:      createdAt,
	}
}

func (s *KnowledgeGraphSnapshot) ID() int64                 { return s.id }
func (s *KnowledgeGraphSnapshot) ConversationID() int64     { return s.conversationID }
func (s *KnowledgeGraphSnapshot) Graph() valueobjects.Graph { return s.graph }
func (s *KnowledgeGraphSnapshot) CreatedAt() time.Time      { return s.createdAt }
