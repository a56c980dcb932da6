package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestInMemoryCache_RoundTrip(t *testing.T) {
	// Arrange
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	// Act
	require.NoError(t, c.Set(ctx, "conversation:1:detail", &view{ID: 1, Title: "plants"}, time.Minute))
	var got view
	found, err := c.Get(ctx, "conversation:1:detail", &got)

	// Assert
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, view{ID: 1, Title: "plants"}, got)
}

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 1, -time.Second))
	var got int
	found, err := c.Get(ctx, "k", &got)

	require.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryCache_DeletePrefix(t *testing.T) {
	c := NewInMemoryCache()
	defer c.Close()
	ctx := context.Background()
	for _, key := range []string{"user:1:list:", "user:1:snapshots", "user:10:list:", "conversation:1:detail"} {
		require.NoError(t, c.Set(ctx, key, "v", time.Minute))
	}

	require.NoError(t, c.DeletePrefix(ctx, "user:1:"))

	var v string
	for key, want := range map[string]bool{
		"user:1:list:":          false,
		"user:1:snapshots":      false,
		"user:10:list:":         true,
		"conversation:1:detail": true,
	} {
		found, err := c.Get(ctx, key, &v)
		require.NoError(t, err)
		assert.Equal(t, want, found, key)
	}
}
