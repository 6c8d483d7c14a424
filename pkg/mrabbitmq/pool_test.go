package mrabbitmq_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varpsim/varp/pkg"
	"github.com/varpsim/varp/pkg/mrabbitmq"
)

type fakeConn struct {
	mu           sync.Mutex
	healthy      bool
	disconnected bool
}

func (f *fakeConn) IsHealthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.healthy && !f.disconnected
}

func (f *fakeConn) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnected = true

	return nil
}

func healthyFactory(created *atomic.Int64) mrabbitmq.Factory {
	return func() (mrabbitmq.Conn, error) {
		if created != nil {
			created.Add(1)
		}

		return &fakeConn{healthy: true}, nil
	}
}

func TestPool_PreallocatesConnections(t *testing.T) {
	t.Parallel()

	var created atomic.Int64

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 3, MaxOverflow: 0, Timeout: time.Second}, healthyFactory(&created), nil)
	defer pool.Close()

	assert.Equal(t, int64(3), created.Load())

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Idle)
	assert.Equal(t, int64(3), stats.Created)
}

func TestPool_AcquireRelease(t *testing.T) {
	t.Parallel()

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 2, MaxOverflow: 0, Timeout: time.Second}, healthyFactory(nil), nil)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, 1, stats.InUse)
	assert.Equal(t, int64(1), stats.Reused)

	pool.Release(pc)

	stats = pool.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 2, stats.Idle)
}

func TestPool_OverflowIsClosedOnRelease(t *testing.T) {
	t.Parallel()

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 1, MaxOverflow: 1, Timeout: time.Second}, healthyFactory(nil), nil)
	defer pool.Close()

	first, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	second, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, pool.Stats().Overflow)

	conn := second.Conn.(*fakeConn)

	pool.Release(second)

	assert.True(t, conn.disconnected, "overflow connection should be closed on release")
	assert.Equal(t, 0, pool.Stats().Overflow)

	pool.Release(first)
}

func TestPool_ExhaustionTimesOutWithBrokerError(t *testing.T) {
	t.Parallel()

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 1, MaxOverflow: 1, Timeout: 150 * time.Millisecond}, healthyFactory(nil), nil)
	defer pool.Close()

	first, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	second, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	start := time.Now()

	_, err = pool.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, pkg.IsBrokerError(err), "exhaustion should surface a broker error, got %v", err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	pool.Release(first)
	pool.Release(second)
}

func TestPool_BlockedAcquirerGetsReleasedConnection(t *testing.T) {
	t.Parallel()

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 1, MaxOverflow: 0, Timeout: 2 * time.Second}, healthyFactory(nil), nil)
	defer pool.Close()

	first, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan error, 1)

	go func() {
		pc, err := pool.Acquire(context.Background())
		if err == nil {
			pool.Release(pc)
		}

		acquired <- err
	}()

	time.Sleep(50 * time.Millisecond)
	pool.Release(first)

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked acquirer never woke up")
	}
}

func TestPool_UnhealthyConnectionIsReplaced(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64

	factory := func() (mrabbitmq.Conn, error) {
		n := calls.Add(1)

		// The preallocated connection is sick; replacements are healthy.
		return &fakeConn{healthy: n > 1}, nil
	}

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 1, MaxOverflow: 0, Timeout: time.Second}, factory, nil)
	defer pool.Close()

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, pc.IsHealthy())

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.HealthCheckFailures)
	assert.Equal(t, int64(2), stats.Created)

	pool.Release(pc)
}

func TestPool_RecyclesOldConnections(t *testing.T) {
	t.Parallel()

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: 1, MaxOverflow: 0, Timeout: time.Second, Recycle: 50 * time.Millisecond}, healthyFactory(nil), nil)
	defer pool.Close()

	time.Sleep(100 * time.Millisecond)

	pc, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), pool.Stats().Recycled)

	pool.Release(pc)
}

func TestPool_ConcurrentAcquirersWithinCapacity(t *testing.T) {
	t.Parallel()

	const (
		size     = 4
		overflow = 2
		workers  = 6
	)

	pool := mrabbitmq.NewPool(mrabbitmq.PoolConfig{Size: size, MaxOverflow: overflow, Timeout: 2 * time.Second}, healthyFactory(nil), nil)
	defer pool.Close()

	var wg sync.WaitGroup

	errs := make(chan error, workers*20)

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := 0; i < 20; i++ {
				err := pool.WithConnection(context.Background(), func(conn mrabbitmq.Conn) error {
					time.Sleep(time.Millisecond)

					if !conn.IsHealthy() {
						t.Error("acquired unhealthy connection")
					}

					return nil
				})
				if err != nil {
					errs <- err
				}
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("acquisition failed: %v", err)
	}

	stats := pool.Stats()
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, 0, stats.Overflow)
}
