package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCall_ReturnsValue(t *testing.T) {
	// Arrange
	guard := NewGuard(DefaultConfig("completion", time.Second), zap.NewNop(), nil)

	// Act
	got, err := Call(context.Background(), guard, func(ctx context.Context) (string, error) {
		return "hello", nil
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestCall_AppliesTimeout(t *testing.T) {
	guard := NewGuard(DefaultConfig("speech", 10*time.Millisecond), zap.NewNop(), nil)

	_, err := Call(context.Background(), guard, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_OpensAfterRepeatedFailures(t *testing.T) {
	cfg := DefaultConfig("tts", time.Second)
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	var transitions []string
	guard := NewGuard(cfg, zap.NewNop(), func(name, to string) {
		transitions = append(transitions, to)
	})
	boom := errors.New("unavailable")
	calls := 0
	failing := func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	}

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), guard, failing)
		assert.ErrorIs(t, err, boom)
	}
	_, err := Call(context.Background(), guard, failing)

	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "open", guard.State())
	assert.Equal(t, []string{"open"}, transitions)
}

func TestCall_CallerCancellationDoesNotTrip(t *testing.T) {
	cfg := DefaultConfig("completion", time.Second)
	cfg.MinRequests = 1
	cfg.FailureThreshold = 0.1
	guard := NewGuard(cfg, zap.NewNop(), nil)

	for i := 0; i < 3; i++ {
		_, err := Call(context.Background(), guard, func(ctx context.Context) (string, error) {
			return "", context.Canceled
		})
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, "closed", guard.State())
}
