package resource

import (
	"bytes"
	"context"
	"io"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(50))
	assert.Equal(t, int64(50), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	err := c.AcquireMemory(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Workers(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	assert.Equal(t, 2, c.Workers())

	require.NoError(t, c.AcquireWorker(context.Background()))
	require.NoError(t, c.AcquireWorker(context.Background()))
	assert.False(t, c.TryAcquireWorker())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWorker(ctx), context.DeadlineExceeded)

	c.ReleaseWorker()
	assert.True(t, c.TryAcquireWorker())
}

func TestController_DefaultWorkers(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers())
}

func TestController_NilChecks(t *testing.T) {
	var c *Controller
	assert.NoError(t, c.AcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Equal(t, int64(0), c.MemoryUsage())
	assert.NoError(t, c.AcquireWorker(context.Background()))
	assert.True(t, c.TryAcquireWorker())
	c.ReleaseWorker()
	assert.NoError(t, c.AcquireIO(context.Background(), 1<<20))
	assert.Equal(t, runtime.GOMAXPROCS(0), c.Workers())
}

func TestController_AcquireIOLargerThanBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	// The bucket starts full, so a single burst-sized request does not wait.
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 4<<20))
}

func TestRateLimitedReaderWriter(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	var buf bytes.Buffer
	w := NewRateLimitedWriter(ctx, &buf, c)
	n, err := w.Write([]byte("codebook"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	r := NewRateLimitedReader(ctx, bytes.NewReader(buf.Bytes()), c)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "codebook", string(got))
}
