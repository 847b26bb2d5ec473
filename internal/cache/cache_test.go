package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("t:")

	_, err := c.Get(ctx, "k")
	require.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_IncrFixedWindow(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")

	n, err := c.Incr(ctx, "hits", 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "hits", 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	ttl, err := c.TTL(ctx, "hits")
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	time.Sleep(80 * time.Millisecond)
	n, err = c.Incr(ctx, "hits", 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestMemory_IncrConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Incr(ctx, "k", time.Minute)
		}()
	}
	wg.Wait()
	n, err := c.Incr(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(51), n)
}

func TestNew_DefaultsToMemory(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
}

func TestMemory_IncrOnStringFails(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")
	require.NoError(t, c.Set(ctx, "k", "text", time.Minute))
	_, err := c.Incr(ctx, "k", time.Minute)
	require.Error(t, err)
}
