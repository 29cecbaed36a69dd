package es

import (
	"context"
	"sync"
)

// Future tracks a pushed write until its effect has been observed on the
// event stream. It is completed at most once.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	ok    bool
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// failedFuture returns a future that is already completed with err.
func failedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.fail(err)
	return f
}

func (f *Future[T]) complete(v T, ok bool) bool {
	completed := false
	f.once.Do(func() {
		f.value, f.ok = v, ok
		close(f.done)
		completed = true
	})
	return completed
}

func (f *Future[T]) fail(err error) bool {
	completed := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done is closed when the future is completed.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the future is completed or ctx is done. The bool reports
// whether a value is present; it is false after a tombstone was applied.
// Giving up on ctx does not cancel the write.
func (f *Future[T]) Await(ctx context.Context) (v T, ok bool, err error) {
	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case <-f.done:
		return f.value, f.ok, f.err
	}
}

// Then registers fn to run in its own goroutine once the future is completed.
func (f *Future[T]) Then(fn func(v T, ok bool, err error)) *Future[T] {
	go func() {
		<-f.done
		fn(f.value, f.ok, f.err)
	}()
	return f
}
