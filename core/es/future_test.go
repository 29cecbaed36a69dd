package es

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFuture_CompletesOnce(t *testing.T) {
	f := newFuture[string]()
	require.True(t, f.complete("first", true))
	require.False(t, f.complete("second", true))
	require.False(t, f.fail(errors.New("late")))

	v, ok, err := f.Await(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "first", v)
}

func TestFuture_Failed(t *testing.T) {
	f := failedFuture[int](ErrStoreRejected)
	select {
	case <-f.Done():
	default:
		t.Fatal("failed future is not done")
	}
	_, ok, err := f.Await(t.Context())
	require.ErrorIs(t, err, ErrStoreRejected)
	require.False(t, ok)
}

func TestFuture_AwaitContext(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, _, err := f.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFuture_Then(t *testing.T) {
	f := newFuture[int]()
	got := make(chan int, 1)
	f.Then(func(v int, ok bool, err error) {
		require.True(t, ok)
		require.NoError(t, err)
		got <- v
	})
	f.complete(42, true)
	require.Equal(t, 42, <-got)
}
