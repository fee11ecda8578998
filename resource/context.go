package resource

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrResourceExhausted is returned when a memory reservation would exceed the
// configured limit.
var ErrResourceExhausted = errors.New("resource exhausted")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for accounted memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// Workers is the maximum number of goroutines used by Parallel.
	// If 0, defaults to GOMAXPROCS.
	Workers int

	// QueriesPerSecond throttles Limit. If 0, unlimited.
	QueriesPerSecond int
}

// Context manages memory, concurrency and ordering for builds and searches.
type Context struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Admission
	limiter *rate.Limiter

	// Stream
	mu      sync.Mutex
	tail    chan struct{}
	pending sync.WaitGroup
	err     error
}

// New creates a new execution context.
func New(cfg Config) *Context {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	c := &Context{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.QueriesPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), cfg.QueriesPerSecond)
	}

	return c
}

// Workers returns the parallelism used by Parallel.
func (c *Context) Workers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}
	return c.cfg.Workers
}

// MemoryLimit returns the configured memory limit (0 = unlimited).
func (c *Context) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireMemory reserves bytes without blocking.
// Returns ErrResourceExhausted if the reservation would exceed the limit.
func (c *Context) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return fmt.Errorf("%w: %d bytes requested, %d of %d in use",
			ErrResourceExhausted, bytes, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Context) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current accounted memory in bytes.
func (c *Context) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// Parallel runs fn over [0, n) split into contiguous chunks on up to Workers
// goroutines. It returns after every chunk has finished, so it doubles as a
// barrier. The first error cancels the remaining chunks.
func (c *Context) Parallel(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n <= 0 {
		return ctx.Err()
	}

	workers := c.Workers()
	if workers == 1 || n == 1 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, 0, n)
	}

	chunk := max(1, (n+workers*4-1)/(workers*4))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, lo, hi)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Limit waits until n queries may be admitted.
func (c *Context) Limit(ctx context.Context, n int) error {
	if c == nil || c.limiter == nil {
		return ctx.Err()
	}

	burst := c.limiter.Burst()
	for n > 0 {
		step := min(n, burst)
		if err := c.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// Enqueue schedules fn on the context's stream. Operations run one at a
// time in enqueue order. Once an operation fails, later ones are skipped
// until Sync reports the error.
func (c *Context) Enqueue(ctx context.Context, fn func(ctx context.Context) error) {
	c.mu.Lock()
	prev := c.tail
	done := make(chan struct{})
	c.tail = done
	c.pending.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.pending.Done()
		defer close(done)

		if prev != nil {
			<-prev
		}

		c.mu.Lock()
		failed := c.err != nil
		c.mu.Unlock()
		if failed {
			return
		}

		err := ctx.Err()
		if err == nil {
			err = fn(ctx)
		}
		if err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = err
			}
			c.mu.Unlock()
		}
	}()
}

// Sync waits for every operation enqueued before the call and returns the
// first error among them. The error is cleared.
func (c *Context) Sync(ctx context.Context) error {
	c.mu.Lock()
	tail := c.tail
	c.mu.Unlock()

	if tail != nil {
		select {
		case <-tail:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.err
	c.err = nil
	return err
}

// Close waits for all outstanding stream operations.
func (c *Context) Close() error {
	if c == nil {
		return nil
	}
	c.pending.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.err
	c.err = nil
	return err
}
