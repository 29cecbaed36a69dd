package es

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// === Helpers ===

// TestTimeout bounds how long the helpers wait for asynchronous delivery.
const TestTimeout = 5 * time.Second

// NewTestStore returns an InMemoryStore that is closed when the test ends.
// Historical events are replayed before the store starts listening.
func NewTestStore(t testing.TB, history ...ReplayEvent) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore()
	t.Cleanup(s.Close)
	require.NoError(t, s.Replay(history...))
	s.Start()
	return s
}

// AwaitStarted waits until src has finished replaying all its event types.
func AwaitStarted(t testing.TB, src interface{ Started() <-chan struct{} }) {
	t.Helper()
	select {
	case <-src.Started():
	case <-time.After(TestTimeout):
		require.FailNow(t, "store did not start")
	}
}

// AwaitFuture waits for f and fails the test on error.
func AwaitFuture[T any](t testing.TB, f *Future[T]) (T, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	v, ok, err := f.Await(ctx)
	require.NoError(t, err)
	return v, ok
}
