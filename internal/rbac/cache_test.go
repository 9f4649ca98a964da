package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryCache_DefaultTTL(t *testing.T) {
	c := NewMemoryCache(-time.Second)
	defer c.Stop()
	assert.Equal(t, 5*time.Minute, c.ttl)
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Stop()
	ctx := context.Background()

	l, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, l.Found)

	require.NoError(t, c.Set(ctx, "k", l.Generation, false))
	l, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, l.Found)
	assert.False(t, l.Allowed)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 0, true))
	time.Sleep(5 * time.Millisecond)

	l, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, l.Found)
}

func TestMemoryCache_StaleGenerationIgnored(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Stop()
	ctx := context.Background()

	l, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	// a decision computed before the invalidation is dropped
	require.NoError(t, c.Set(ctx, "k", l.Generation, true))
	assert.Zero(t, c.Len())

	l, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, l.Found)
	assert.Equal(t, uint64(1), l.Generation)
}

func TestMemoryCache_StopIsIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.Stop()
	c.Stop()
}
