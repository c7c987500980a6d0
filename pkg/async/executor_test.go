package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsResult(t *testing.T) {
	e := NewExecutor(Options{Workers: 2})
	defer e.Stop()

	f := Submit(context.Background(), e, func(ctx context.Context) (string, error) {
		return "derby:orders;create=true", nil
	})

	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "derby:orders;create=true", v)
	assert.NoError(t, f.Err())
}

func TestSubmitPropagatesError(t *testing.T) {
	e := NewExecutor(Options{})
	defer e.Stop()

	boom := errors.New("boom")
	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	_, err := f.Get(context.Background())
	assert.Equal(t, boom, err)
}

func TestWorkersBoundConcurrency(t *testing.T) {
	e := NewExecutor(Options{Workers: 2, QueueSize: 16})
	defer e.Stop()

	var running, peak int32
	var futures []*Future[int]
	for i := 0; i < 8; i++ {
		futures = append(futures, Submit(context.Background(), e, func(ctx context.Context) (int, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return int(n), nil
		}))
	}

	for _, f := range futures {
		_, err := f.Get(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestTimeoutFailsFuture(t *testing.T) {
	e := NewExecutor(Options{Workers: 1, Timeout: 20 * time.Millisecond})
	defer e.Stop()

	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	_, err := f.Get(context.Background())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNoTimeoutByDefault(t *testing.T) {
	e := NewExecutor(Options{Workers: 1})
	defer e.Stop()
	assert.Zero(t, e.Timeout())

	f := Submit(context.Background(), e, func(ctx context.Context) (bool, error) {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline, nil
	})
	hasDeadline, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, hasDeadline)
}

func TestCancel(t *testing.T) {
	e := NewExecutor(Options{Workers: 1})
	defer e.Stop()

	started := make(chan struct{})
	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	f.Cancel()

	_, err := f.Get(context.Background())
	assert.Equal(t, context.Canceled, err)
}

type closer struct {
	mu     sync.Mutex
	closed bool
}

func (c *closer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *closer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestLateResultIsNotClosed(t *testing.T) {
	e := NewExecutor(Options{Workers: 1})

	started := make(chan struct{})
	release := make(chan struct{})
	c := &closer{}
	f := Submit(context.Background(), e, func(ctx context.Context) (*closer, error) {
		close(started)
		<-release
		return c, nil
	})

	<-started
	f.Cancel()
	close(release)
	e.Stop()

	_, err := f.Get(context.Background())
	assert.Equal(t, context.Canceled, err)
	assert.False(t, c.isClosed(), "a late result may be shared and must stay open")
}

func TestSubmitAfterStop(t *testing.T) {
	e := NewExecutor(Options{})
	e.Stop()
	e.Stop()

	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		return 1, nil
	})
	_, err := f.Get(context.Background())
	assert.Equal(t, ErrStopped, err)
}

func TestStopDrainsQueue(t *testing.T) {
	e := NewExecutor(Options{Workers: 1, QueueSize: 8})

	var ran int32
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Enqueue(context.Background(), JobFunc(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&ran, 1)
		})))
	}
	e.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestGetHonorsCallerContext(t *testing.T) {
	e := NewExecutor(Options{Workers: 1})
	defer e.Stop()

	release := make(chan struct{})
	defer close(release)
	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	assert.Equal(t, context.DeadlineExceeded, err)
	assert.NoError(t, f.Err(), "future still pending")
}

type recordingObserver struct {
	n int32
}

func (o *recordingObserver) ObserveJob(queueWait, runTime time.Duration) {
	atomic.AddInt32(&o.n, 1)
}

func TestObserver(t *testing.T) {
	o := &recordingObserver{}
	e := NewExecutor(Options{Workers: 1, Observer: o})

	f := Submit(context.Background(), e, func(ctx context.Context) (int, error) { return 1, nil })
	_, _ = f.Get(context.Background())
	e.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&o.n))
}

func TestFailedAndCompleted(t *testing.T) {
	boom := errors.New("boom")
	_, err := Failed[int](boom).Get(context.Background())
	assert.Equal(t, boom, err)

	v, err := Completed(7).Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
