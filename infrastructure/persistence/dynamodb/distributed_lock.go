package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	pkgerrors "vdchat/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errLockHeld = errors.New("lock already held")

// LockAPI is the subset of the DynamoDB client used for locking
type LockAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ConversationLock serializes turns on the same conversation across
// instances using DynamoDB conditional writes. A lock record expires after
// leaseDuration so a crashed holder cannot block a conversation forever.
type ConversationLock struct {
	client        LockAPI
	tableName     string
	ownerID       string
	leaseDuration time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// LockRecord represents a lock record in DynamoDB
type LockRecord struct {
	PK         string `dynamodbav:"PK"` // LOCK#CONVERSATION#<id>
	SK         string `dynamodbav:"SK"` // LOCK
	LockID     string `dynamodbav:"LockID"`
	Owner      string `dynamodbav:"Owner"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"` // Unix timestamp for DynamoDB TTL
}

// NewConversationLock creates a lock client owned by this process
func NewConversationLock(client LockAPI, tableName string, leaseDuration time.Duration, logger *zap.Logger) *ConversationLock {
	if leaseDuration <= 0 {
		leaseDuration = time.Minute
	}
	return &ConversationLock{
		client:        client,
		tableName:     tableName,
		ownerID:       uuid.New().String(),
		leaseDuration: leaseDuration,
		retryInterval: 100 * time.Millisecond,
		logger:        logger,
	}
}

// Lock retries acquisition with backoff until it succeeds or ctx is done.
func (l *ConversationLock) Lock(ctx context.Context, conversationID int64) (func(), error) {
	resource := lockKey(conversationID)
	retryInterval := l.retryInterval

	for {
		lockID, err := l.acquire(ctx, resource)
		if err == nil {
			return l.releaser(resource, lockID), nil
		}
		if !errors.Is(err, errLockHeld) {
			return nil, pkgerrors.NewStorageError("acquire_lock", err)
		}

		select {
		case <-ctx.Done():
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("conversation %d is busy", conversationID)).WithCause(ctx.Err())
		case <-time.After(retryInterval):
			if retryInterval < time.Second {
				retryInterval = time.Duration(float64(retryInterval) * 1.5)
			}
		}
	}
}

func (l *ConversationLock) acquire(ctx context.Context, resource string) (string, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(l.leaseDuration)
	lockID := fmt.Sprintf("%s_%d", l.ownerID, now.UnixNano())

	item, err := attributevalue.MarshalMap(LockRecord{
		PK:         resource,
		SK:         "LOCK",
		LockID:     lockID,
		Owner:      l.ownerID,
		AcquiredAt: now.Format(time.RFC3339),
		ExpiresAt:  expiresAt.Format(time.RFC3339),
		TTL:        expiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock record: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			l.logger.Debug("Conversation lock already held", zap.String("resource", resource))
			return "", errLockHeld
		}
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.logger.Debug("Conversation lock acquired",
		zap.String("resource", resource),
		zap.String("lockID", lockID),
	)
	return lockID, nil
}

func (l *ConversationLock) releaser(resource, lockID string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		// Release must run even when the turn's context was cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(l.tableName),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: resource},
				"SK": &types.AttributeValueMemberS{Value: "LOCK"},
			},
			ConditionExpression: aws.String("LockID = :lockId AND #owner = :owner"),
			ExpressionAttributeNames: map[string]string{
				"#owner": "Owner",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":lockId": &types.AttributeValueMemberS{Value: lockID},
				":owner":  &types.AttributeValueMemberS{Value: l.ownerID},
			},
		})
		if err != nil {
			var conditionalCheckFailed *types.ConditionalCheckFailedException
			if errors.As(err, &conditionalCheckFailed) {
				l.logger.Warn("Conversation lock expired before release",
					zap.String("resource", resource),
					zap.String("lockID", lockID),
				)
				return
			}
			l.logger.Error("Failed to release conversation lock",
				zap.String("resource", resource),
				zap.Error(err),
			)
		}
	}
}

func lockKey(conversationID int64) string {
	return "LOCK#CONVERSATION#" + strconv.FormatInt(conversationID, 10)
}
