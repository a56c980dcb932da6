package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameConversation(t *testing.T) {
	// Arrange
	locks := NewKeyedMutex()
	var active, maxActive int32
	var wg sync.WaitGroup

	// Act
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(context.Background(), 42)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	// Assert
	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, 0, locks.Len())
}

func TestKeyedMutex_DifferentConversationsDoNotBlock(t *testing.T) {
	locks := NewKeyedMutex()
	unlockA, err := locks.Lock(context.Background(), 1)
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locks.Lock(ctx, 2)

	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_HonorsContextCancellation(t *testing.T) {
	locks := NewKeyedMutex()
	unlock, err := locks.Lock(context.Background(), 7)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locks.Lock(ctx, 7)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	unlock()
	unlock()
	assert.Equal(t, 0, locks.Len())
}
