package handlers

import (
	"context"
	"testing"
	"time"

	"vdchat/application/commands"
	"vdchat/application/commands/bus"
	"vdchat/application/ports/mocks"
	"vdchat/application/queries"
	"vdchat/domain/core/entities"
	"vdchat/domain/events"
	"vdchat/infrastructure/cache"
	pkgerrors "vdchat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDeleteConversation(t *testing.T) {
	// Arrange
	repo := new(mocks.MockConversationRepository)
	publisher := new(mocks.MockEventPublisher)
	memory := cache.NewInMemoryCache()
	defer memory.Close()

	ctx := context.Background()
	require.NoError(t, memory.Set(ctx, queries.UserKeyPrefix("1")+"list", "cached", time.Minute))
	require.NoError(t, memory.Set(ctx, queries.ConversationKeyPrefix(5)+"get", "cached", time.Minute))
	require.NoError(t, memory.Set(ctx, queries.UserKeyPrefix("2")+"list", "other", time.Minute))

	repo.On("GetByID", mock.Anything, int64(5)).Return(entities.ReconstructConversation(5, "1", "User: hi", time.Now()), nil)
	repo.On("Delete", mock.Anything, int64(5)).Return(nil)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e events.DomainEvent) bool {
		return e.GetEventType() == events.TypeConversationDeleted && e.GetAggregateID() == "5"
	})).Return(nil)

	commandBus := bus.NewCommandBus()
	handler := NewDeleteConversationHandler(repo, mocks.NoopLocker{}, memory, publisher, zap.NewNop())
	require.NoError(t, commandBus.Register(commands.DeleteConversationCommand{}, handler))

	// Act
	err := commandBus.Send(ctx, commands.DeleteConversationCommand{ConversationID: 5})

	// Assert
	require.NoError(t, err)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)

	var value string
	hit, _ := memory.Get(ctx, queries.UserKeyPrefix("1")+"list", &value)
	assert.False(t, hit)
	hit, _ = memory.Get(ctx, queries.ConversationKeyPrefix(5)+"get", &value)
	assert.False(t, hit)
	hit, _ = memory.Get(ctx, queries.UserKeyPrefix("2")+"list", &value)
	assert.True(t, hit)
}

func TestDeleteConversation_NotFound(t *testing.T) {
	repo := new(mocks.MockConversationRepository)
	publisher := new(mocks.MockEventPublisher)
	repo.On("GetByID", mock.Anything, int64(42)).Return(nil, pkgerrors.NewNotFoundError("conversation 42"))
	handler := NewDeleteConversationHandler(repo, mocks.NoopLocker{}, nil, publisher, zap.NewNop())

	err := handler.Handle(context.Background(), commands.DeleteConversationCommand{ConversationID: 42})

	assert.True(t, pkgerrors.IsNotFound(err))
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDeleteConversation_Validation(t *testing.T) {
	commandBus := bus.NewCommandBus()
	require.NoError(t, commandBus.Register(commands.DeleteConversationCommand{},
		NewDeleteConversationHandler(new(mocks.MockConversationRepository), mocks.NoopLocker{}, nil, nil, zap.NewNop())))

	err := commandBus.Send(context.Background(), commands.DeleteConversationCommand{ConversationID: 0})

	assert.True(t, pkgerrors.IsValidation(err))
}
