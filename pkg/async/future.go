package async

import (
	"context"
	"sync"
)

// Future is the eventual result of a submitted job.
type Future[T any] struct {
	done   chan struct{}
	once   sync.Once
	val    T
	err    error
	cancel context.CancelFunc
}

func newFuture[T any](cancel context.CancelFunc) *Future[T] {
	if cancel == nil {
		cancel = func() {}
	}
	return &Future[T]{done: make(chan struct{}), cancel: cancel}
}

// Completed returns a future already holding v.
func Completed[T any](v T) *Future[T] {
	f := newFuture[T](nil)
	f.complete(v, nil)
	return f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := newFuture[T](nil)
	var zero T
	f.complete(zero, err)
	return f
}

// Submit runs fn on the executor. The job context derives from ctx and carries
// the executor's timeout, if any. If the job context ends before fn returns the
// future fails with the context error and the late result is dropped; fn's
// result stays owned by whatever produced it, so it is never closed here.
func Submit[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) *Future[T] {
	var (
		jobCtx context.Context
		cancel context.CancelFunc
	)
	if t := e.Timeout(); t > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, t)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}

	f := newFuture[T](cancel)
	var zero T
	stop := context.AfterFunc(jobCtx, func() {
		f.complete(zero, jobCtx.Err())
	})

	job := JobFunc(func(ctx context.Context) {
		defer cancel()
		defer stop()

		if err := ctx.Err(); err != nil {
			f.complete(zero, err)
			return
		}

		f.complete(fn(ctx))
	})

	if err := e.Enqueue(jobCtx, job); err != nil {
		stop()
		cancel()
		f.complete(zero, err)
	}
	return f
}

// complete stores the result; only the first call wins.
func (f *Future[T]) complete(v T, err error) bool {
	won := false
	f.once.Do(func() {
		f.val = v
		f.err = err
		won = true
		close(f.done)
	})
	return won
}

// Get waits for the result or until ctx is done.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Cancel aborts the job. A pending future fails with context.Canceled.
func (f *Future[T]) Cancel() {
	f.cancel()
	var zero T
	f.complete(zero, context.Canceled)
}

// Err returns the error of a completed future, or nil while it is pending.
func (f *Future[T]) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}
