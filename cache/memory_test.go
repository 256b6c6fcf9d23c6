package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officebrew/points-engine/cache"
)

func TestMemory_SetGet(t *testing.T) {
	c := cache.NewMemory(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.View{UserID: "alice", TotalXP: 150, Level: 2}))

	v, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(150), v.TotalXP)
	assert.Equal(t, 2, v.Level)
}

func TestMemory_Miss(t *testing.T) {
	c := cache.NewMemory(time.Minute)
	_, err := c.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	c := cache.NewMemory(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.View{UserID: "alice", TotalXP: 150}))
	time.Sleep(25 * time.Millisecond)

	_, err := c.Get(ctx, "alice")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemory_Invalidate(t *testing.T) {
	c := cache.NewMemory(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.View{UserID: "alice", TotalXP: 150}))
	require.NoError(t, c.Invalidate(ctx, "alice"))

	_, err := c.Get(ctx, "alice")
	assert.ErrorIs(t, err, cache.ErrMiss)

	// Invalidating an absent key is fine.
	assert.NoError(t, c.Invalidate(ctx, "alice"))
}

func TestMemory_SetOverwrites(t *testing.T) {
	c := cache.NewMemory(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cache.View{UserID: "alice", TotalXP: 100}))
	require.NoError(t, c.Set(ctx, cache.View{UserID: "alice", TotalXP: 200}))

	v, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(200), v.TotalXP)
}
