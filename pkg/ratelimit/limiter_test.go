package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowLimiter(t *testing.T) {
	// Arrange
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	// Act & Assert
	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _ := limiter.Allow(ctx, "user-1")
	assert.False(t, allowed, "third request inside the window")

	allowed, _ = limiter.Allow(ctx, "user-2")
	assert.True(t, allowed, "keys are independent")

	now = now.Add(61 * time.Second)
	allowed, _ = limiter.Allow(ctx, "user-1")
	assert.True(t, allowed, "window has moved on")
}

func TestSlidingWindowLimiter_Prune(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewSlidingWindowLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "stale")
	now = now.Add(2 * time.Minute)
	_, _ = limiter.Allow(context.Background(), "fresh")

	limiter.Prune()

	assert.NotContains(t, limiter.windows, "stale")
	assert.Contains(t, limiter.windows, "fresh")
}

type fakeCounterTable struct {
	counts map[string]int
	err    error
	input  *dynamodb.UpdateItemInput
}

func (f *fakeCounterTable) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}

	pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
	if f.counts[pk] >= 2 {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.counts[pk]++

	attrs, err := attributevalue.MarshalMap(counterEntry{PK: pk, SK: "RATELIMIT", Count: f.counts[pk]})
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
}

func TestDistributedLimiter(t *testing.T) {
	// Arrange
	table := &fakeCounterTable{counts: map[string]int{}}
	limiter := NewDistributedLimiter(table, "vdchat-locks", 2, time.Minute)
	limiter.now = func() time.Time { return time.Unix(1_700_000_030, 0) }
	ctx := context.Background()

	// Act
	first, err1 := limiter.Allow(ctx, "user-1")
	second, err2 := limiter.Allow(ctx, "user-1")
	third, err3 := limiter.Allow(ctx, "user-1")

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.NoError(t, err3)
	assert.True(t, first)
	assert.True(t, second)
	assert.False(t, third)
	assert.Equal(t, "vdchat-locks", *table.input.TableName)
	assert.Equal(t, "RATELIMIT#user-1#1699999980", table.input.Key["PK"].(*types.AttributeValueMemberS).Value)
}

func TestDistributedLimiter_FailsOpen(t *testing.T) {
	table := &fakeCounterTable{counts: map[string]int{}, err: errors.New("throttled")}
	limiter := NewDistributedLimiter(table, "vdchat-locks", 2, time.Minute)

	allowed, err := limiter.Allow(context.Background(), "user-1")

	assert.True(t, allowed)
	assert.ErrorContains(t, err, "throttled")
}
