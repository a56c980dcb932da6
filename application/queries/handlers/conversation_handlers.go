package handlers

import (
	"context"
	"fmt"
	"strings"

	"vdchat/application/ports"
	"vdchat/application/queries"
	"vdchat/application/queries/bus"
	"vdchat/domain/core/entities"
	pkgerrors "vdchat/pkg/errors"

	"go.uber.org/zap"
)

// ConversationQueryHandler serves the conversation and knowledge-graph read models
type ConversationQueryHandler struct {
	repo       ports.ConversationRepository
	completion ports.CompletionGateway
	logger     *zap.Logger
}

// NewConversationQueryHandler creates a new conversation query handler
func NewConversationQueryHandler(repo ports.ConversationRepository, completion ports.CompletionGateway, logger *zap.Logger) *ConversationQueryHandler {
	return &ConversationQueryHandler{
		repo:       repo,
		completion: completion,
		logger:     logger,
	}
}

// Handle implements bus.QueryHandler
func (h *ConversationQueryHandler) Handle(ctx context.Context, query bus.Query) (interface{}, error) {
	switch q := query.(type) {
	case queries.ListConversationsQuery:
		return h.listConversations(ctx, q)
	case queries.GetConversationQuery:
		return h.getConversation(ctx, q)
	case queries.ListSnapshotsQuery:
		return h.listSnapshots(ctx, q)
	case queries.ListUserSnapshotsQuery:
		return h.listUserSnapshots(ctx, q)
	case queries.SummarizeConversationQuery:
		return h.summarize(ctx, q)
	default:
		return nil, fmt.Errorf("unsupported query type %T", query)
	}
}

// Register wires every conversation query into the bus. Cacheable queries go
// through the caching middleware when one is given.
func (h *ConversationQueryHandler) Register(queryBus *bus.QueryBus, caching *bus.CachingMiddleware) error {
	var cached bus.QueryHandler = h
	if caching != nil {
		cached = caching.Wrap(h)
	}

	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.ListConversationsQuery{}, cached},
		{queries.GetConversationQuery{}, cached},
		{queries.ListSnapshotsQuery{}, cached},
		{queries.ListUserSnapshotsQuery{}, cached},
		{queries.SummarizeConversationQuery{}, h},
	}
	for _, r := range registrations {
		if err := queryBus.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func (h *ConversationQueryHandler) listConversations(ctx context.Context, q queries.ListConversationsQuery) (*queries.ConversationListResult, error) {
	var (
		conversations []*entities.Conversation
		err           error
	)
	if search := strings.TrimSpace(q.Search); search != "" {
		conversations, err = h.repo.Search(ctx, q.UserID, search)
	} else {
		conversations, err = h.repo.ListByUser(ctx, q.UserID)
	}
	if err != nil {
		return nil, err
	}

	result := &queries.ConversationListResult{
		Conversations: make([]queries.ConversationResult, 0, len(conversations)),
		Total:         len(conversations),
	}
	for _, c := range conversations {
		result.Conversations = append(result.Conversations, queries.NewConversationResult(c))
	}
	return result, nil
}

func (h *ConversationQueryHandler) getConversation(ctx context.Context, q queries.GetConversationQuery) (*queries.ConversationResult, error) {
	conv, err := h.repo.GetByID(ctx, q.ConversationID)
	if err != nil {
		return nil, err
	}
	result := queries.NewConversationResult(conv)
	return &result, nil
}

func (h *ConversationQueryHandler) listSnapshots(ctx context.Context, q queries.ListSnapshotsQuery) (*queries.SnapshotListResult, error) {
	// An unknown conversation is a 404, not an empty list.
	if _, err := h.repo.GetByID(ctx, q.ConversationID); err != nil {
		return nil, err
	}

	snapshots, err := h.repo.ListSnapshots(ctx, q.ConversationID)
	if err != nil {
		return nil, err
	}
	return toSnapshotList(snapshots), nil
}

func (h *ConversationQueryHandler) listUserSnapshots(ctx context.Context, q queries.ListUserSnapshotsQuery) (*queries.SnapshotListResult, error) {
	snapshots, err := h.repo.ListSnapshotsByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	return toSnapshotList(snapshots), nil
}

func (h *ConversationQueryHandler) summarize(ctx context.Context, q queries.SummarizeConversationQuery) (*queries.SummaryResult, error) {
	conv, err := h.repo.GetByID(ctx, q.ConversationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(conv.Transcript()) == "" {
		return nil, pkgerrors.NewValidationError("conversation has no transcript to summarize")
	}

	summary, err := h.completion.Summarize(ctx, conv.Transcript())
	if err != nil {
		h.logger.Warn("Summarization failed",
			zap.Int64("conversation_id", q.ConversationID),
			zap.Error(err),
		)
		return nil, err
	}

	return &queries.SummaryResult{
		ConversationID: conv.ID(),
		Summary:        summary,
	}, nil
}

func toSnapshotList(snapshots []*entities.KnowledgeGraphSnapshot) *queries.SnapshotListResult {
	result := &queries.SnapshotListResult{
		Snapshots: make([]queries.SnapshotResult, 0, len(snapshots)),
		Total:     len(snapshots),
	}
	for _, s := range snapshots {
		result.Snapshots = append(result.Snapshots, queries.NewSnapshotResult(s))
	}
	return result
}
