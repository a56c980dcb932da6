package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UpdateItemAPI is the subset of the DynamoDB client the limiter needs
type UpdateItemAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// counterEntry is one fixed-window counter row
type counterEntry struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	Count int    `dynamodbav:"Count"`
	TTL   int64  `dynamodbav:"TTL"`
}

// DistributedLimiter counts requests per fixed window in DynamoDB so every
// instance shares one budget per key. Counter rows expire through TTL.
type DistributedLimiter struct {
	client    UpdateItemAPI
	tableName string
	limit     int
	window    time.Duration
	now       func() time.Time
}

// NewDistributedLimiter creates a limiter backed by tableName
func NewDistributedLimiter(client UpdateItemAPI, tableName string, limit int, window time.Duration) *DistributedLimiter {
	return &DistributedLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		now:       time.Now,
	}
}

// Allow increments the counter for the current window unless it already
// reached the limit. Storage failures fail open and are returned so the
// caller can log them.
func (l *DistributedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := l.now().Truncate(l.window)
	windowEnd := windowStart.Add(l.window)

	result, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: counterKey(key, windowStart)},
			"SK": &types.AttributeValueMemberS{Value: "RATELIMIT"},
		},
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":incr":  &types.AttributeValueMemberN{Value: "1"},
			":limit": &types.AttributeValueMemberN{Value: strconv.Itoa(l.limit)},
			":ttl":   &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Add(time.Hour).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return true, fmt.Errorf("rate limiter unavailable, allowing request: %w", err)
	}

	var entry counterEntry
	if err := attributevalue.UnmarshalMap(result.Attributes, &entry); err != nil {
		return true, fmt.Errorf("failed to parse rate limit entry: %w", err)
	}

	return entry.Count <= l.limit, nil
}

// Window returns the configured window length
func (l *DistributedLimiter) Window() time.Duration {
	return l.window
}

func counterKey(key string, windowStart time.Time) string {
	return fmt.Sprintf("RATELIMIT#%s#%d", key, windowStart.Unix())
}
