package events

import (
	"strconv"
	"time"
)

// Source identifies this service on the event bus.
const Source = "vdchat.backend"

// Event types
const (
	TypeConversationStarted   = "conversation.started"
	TypeTurnCompleted         = "conversation.turn_completed"
	TypeKnowledgeGraphRebuilt = "knowledge_graph.rebuilt"
	TypeConversationDeleted   = "conversation.deleted"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(conversationID int64, eventType string, timestamp time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: strconv.FormatInt(conversationID, 10),
		EventType:   eventType,
		Timestamp:   timestamp,
		Version:     1,
	}
}

// ConversationStarted is raised when the first turn creates a conversation
type ConversationStarted struct {
	BaseEvent
	ConversationID int64  `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

func NewConversationStarted(conversationID int64, userID string, timestamp time.Time) ConversationStarted {
	return ConversationStarted{
		BaseEvent:      newBase(conversationID, TypeConversationStarted, timestamp),
		ConversationID: conversationID,
		UserID:         userID,
	}
}

// TurnCompleted is raised once a turn has been persisted, whether or not
// every later stage succeeded.
type TurnCompleted struct {
	BaseEvent
	ConversationID int64    `json:"conversation_id"`
	TurnID         string   `json:"turn_id"`
	SnapshotID     int64    `json:"snapshot_id,omitempty"`
	Topics         []string `json:"topics"`
	AudioAvailable bool     `json:"audio_available"`
	Warnings       []string `json:"warnings,omitempty"`
}

func NewTurnCompleted(conversationID int64, turnID string, snapshotID int64, topics []string, audioAvailable bool, warnings []string, timestamp time.Time) TurnCompleted {
	return TurnCompleted{
		BaseEvent:      newBase(conversationID, TypeTurnCompleted, timestamp),
		ConversationID: conversationID,
		TurnID:         turnID,
		SnapshotID:     snapshotID,
		Topics:         topics,
		AudioAvailable: audioAvailable,
		Warnings:       warnings,
	}
}

// KnowledgeGraphRebuilt is raised when a snapshot is produced from a full transcript
type KnowledgeGraphRebuilt struct {
	BaseEvent
	ConversationID int64 `json:"conversation_id"`
	SnapshotID     int64 `json:"snapshot_id"`
	NodeCount      int   `json:"node_count"`
}

func NewKnowledgeGraphRebuilt(conversationID, snapshotID int64, nodeCount int, timestamp time.Time) KnowledgeGraphRebuilt {
	return KnowledgeGraphRebuilt{
		BaseEvent:      newBase(conversationID, TypeKnowledgeGraphRebuilt, timestamp),
		ConversationID: conversationID,
		SnapshotID:     snapshotID,
		NodeCount:      nodeCount,
	}
}

// ConversationDeleted is raised after a conversation and its snapshots are removed
type ConversationDeleted struct {
	BaseEvent
	ConversationID int64  `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

func NewConversationDeleted(conversationID int64, userID string, timestamp time.Time) ConversationDeleted {
	return ConversationDeleted{
		BaseEvent:      newBase(conversationID, TypeConversationDeleted, timestamp),
		ConversationID: conversationID,
		UserID:         userID,
	}
}
