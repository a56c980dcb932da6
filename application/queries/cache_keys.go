package queries

import (
	"context"
	"strconv"

	"vdchat/application/ports"

	"go.uber.org/zap"
)

// UserKeyPrefix prefixes every cached read model scoped to a user
func UserKeyPrefix(userID string) string {
	return "user:" + userID + ":"
}

// ConversationKeyPrefix prefixes every cached read model scoped to a conversation
func ConversationKeyPrefix(conversationID int64) string {
	return "conversation:" + strconv.FormatInt(conversationID, 10) + ":"
}

// InvalidateConversation drops cached read models touched by a write to the
// conversation. Failures are logged; stale entries expire with their TTL.
func InvalidateConversation(ctx context.Context, cache ports.Cache, logger *zap.Logger, userID string, conversationID int64) {
	if cache == nil {
		return
	}
	for _, prefix := range []string{UserKeyPrefix(userID), ConversationKeyPrefix(conversationID)} {
		if err := cache.DeletePrefix(ctx, prefix); err != nil {
			logger.Warn("Cache invalidation failed",
				zap.String("prefix", prefix),
				zap.Error(err),
			)
		}
	}
}
