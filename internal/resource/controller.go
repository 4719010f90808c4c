package resource

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the maximum number of concurrent codec workers.
	// If 0, defaults to GOMAXPROCS.
	MaxWorkers int64

	// MemoryLimitBytes is the hard limit for training scratch memory.
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum artifact IO throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages shared codec resources.
type Controller struct {
	cfg Config

	workers *semaphore.Weighted

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Workers returns the worker budget.
func (c *Controller) Workers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}
	return int(c.cfg.MaxWorkers)
}

// AcquireWorker blocks until a worker slot is free or ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return ctx.Err()
	}
	return c.workers.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workers.TryAcquire(1)
}

// ReleaseWorker releases a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireMemory reserves bytes of scratch memory.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
// Non-blocking: callers decide whether to retry.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the bucket are split into burst-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// RateLimitedReader throttles reads through the controller's IO limiter.
type RateLimitedReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// NewRateLimitedReader wraps r.
func NewRateLimitedReader(ctx context.Context, r io.Reader, c *Controller) *RateLimitedReader {
	return &RateLimitedReader{ctx: ctx, r: r, c: c}
}

// Read implements io.Reader.
func (r *RateLimitedReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.c.AcquireIO(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// RateLimitedWriter throttles writes through the controller's IO limiter.
type RateLimitedWriter struct {
	ctx context.Context
	w   io.Writer
	c   *Controller
}

// NewRateLimitedWriter wraps w.
func NewRateLimitedWriter(ctx context.Context, w io.Writer, c *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{ctx: ctx, w: w, c: c}
}

// Write implements io.Writer.
func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	if err := w.c.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}
