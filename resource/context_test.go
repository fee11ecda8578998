package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Memory(t *testing.T) {
	c := New(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	// Acquire 20 (should fail fast)
	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestContext_UnlimitedMemory(t *testing.T) {
	c := New(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestContext_NilIsUsable(t *testing.T) {
	var c *Context

	require.NoError(t, c.AcquireMemory(1<<40))
	c.ReleaseMemory(1 << 40)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.Positive(t, c.Workers())
	require.NoError(t, c.Limit(context.Background(), 5))

	var sum atomic.Int64
	require.NoError(t, c.Parallel(context.Background(), 100, func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			sum.Add(int64(i))
		}
		return nil
	}))
	assert.Equal(t, int64(4950), sum.Load())
}

func TestAlloc(t *testing.T) {
	c := New(Config{MemoryLimitBytes: 64})

	m, release, err := Alloc[float32](c, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Rows())
	assert.Equal(t, int64(64), c.MemoryUsage())

	_, _, err = Alloc[uint32](c, 1, 1)
	assert.ErrorIs(t, err, ErrResourceExhausted)

	release()
	release()
	assert.Equal(t, int64(0), c.MemoryUsage())

	release, err = Reserve(c, 16)
	require.NoError(t, err)
	assert.Equal(t, int64(16), c.MemoryUsage())
	release()
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestParallel(t *testing.T) {
	c := New(Config{Workers: 4})

	t.Run("CoversRange", func(t *testing.T) {
		seen := make([]int32, 1000)
		err := c.Parallel(context.Background(), len(seen), func(_ context.Context, lo, hi int) error {
			for i := lo; i < hi; i++ {
				atomic.AddInt32(&seen[i], 1)
			}
			return nil
		})
		require.NoError(t, err)
		for i, v := range seen {
			require.Equal(t, int32(1), v, "index %d", i)
		}
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		boom := errors.New("boom")
		err := c.Parallel(context.Background(), 100, func(_ context.Context, lo, _ int) error {
			if lo == 0 {
				return boom
			}
			return nil
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := c.Parallel(ctx, 100, func(context.Context, int, int) error { return nil })
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Empty", func(t *testing.T) {
		called := false
		require.NoError(t, c.Parallel(context.Background(), 0, func(context.Context, int, int) error {
			called = true
			return nil
		}))
		assert.False(t, called)
	})
}

func TestLimit(t *testing.T) {
	c := New(Config{QueriesPerSecond: 1000})
	require.NoError(t, c.Limit(context.Background(), 1500))

	slow := New(Config{QueriesPerSecond: 1})
	require.NoError(t, slow.Limit(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, slow.Limit(ctx, 1))
}

func TestStream(t *testing.T) {
	c := New(Config{})
	ctx := context.Background()

	var order []int
	for i := range 10 {
		c.Enqueue(ctx, func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	require.NoError(t, c.Sync(ctx))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)

	boom := errors.New("boom")
	ran := false
	c.Enqueue(ctx, func(context.Context) error { return boom })
	c.Enqueue(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, c.Sync(ctx), boom)
	assert.False(t, ran)

	// The error is cleared by Sync.
	c.Enqueue(ctx, func(context.Context) error { return nil })
	require.NoError(t, c.Sync(ctx))
	require.NoError(t, c.Close())
}
