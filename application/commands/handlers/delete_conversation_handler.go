package handlers

import (
	"context"
	"fmt"
	"time"

	"vdchat/application/commands"
	"vdchat/application/commands/bus"
	"vdchat/application/ports"
	"vdchat/application/queries"
	"vdchat/domain/events"
	pkgerrors "vdchat/pkg/errors"

	"go.uber.org/zap"
)

// DeleteConversationHandler handles conversation deletion commands
type DeleteConversationHandler struct {
	repo      ports.ConversationRepository
	locker    ports.ConversationLocker
	cache     ports.Cache
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewDeleteConversationHandler creates a new delete conversation handler
func NewDeleteConversationHandler(
	repo ports.ConversationRepository,
	locker ports.ConversationLocker,
	cache ports.Cache,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *DeleteConversationHandler {
	return &DeleteConversationHandler{
		repo:      repo,
		locker:    locker,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle implements bus.CommandHandler
func (h *DeleteConversationHandler) Handle(ctx context.Context, cmd bus.Command) error {
	c, ok := cmd.(commands.DeleteConversationCommand)
	if !ok {
		return fmt.Errorf("unsupported command type %T", cmd)
	}

	// Wait for any in-flight turn on the conversation.
	unlock, err := h.locker.Lock(ctx, c.ConversationID)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return err
		}
		return pkgerrors.NewConflictError(fmt.Sprintf("conversation %d is busy", c.ConversationID)).WithCause(err)
	}
	defer unlock()

	conv, err := h.repo.GetByID(ctx, c.ConversationID)
	if err != nil {
		return err
	}

	if err := h.repo.Delete(ctx, c.ConversationID); err != nil {
		return err
	}

	queries.InvalidateConversation(ctx, h.cache, h.logger, conv.UserID(), conv.ID())

	h.logger.Info("Conversation deleted",
		zap.Int64("conversation_id", conv.ID()),
		zap.String("user_id", conv.UserID()),
	)

	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, events.NewConversationDeleted(conv.ID(), conv.UserID(), time.Now().UTC())); err != nil {
			h.logger.Warn("Failed to publish event",
				zap.String("event_type", events.TypeConversationDeleted),
				zap.Error(err),
			)
		}
	}
	return nil
}
