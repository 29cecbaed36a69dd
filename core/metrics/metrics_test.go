package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerFunc(t *testing.T) {
	var observed time.Duration
	calls := 0
	timer := TimerFunc(func(d time.Duration) {
		observed = d
		calls++
	})
	time.Sleep(2 * time.Millisecond)
	timer.ObserveDuration()

	require.Equal(t, 1, calls)
	require.GreaterOrEqual(t, observed, 2*time.Millisecond)
}

func TestNopTimer(t *testing.T) {
	require.NotPanics(t, func() { NopTimer().ObserveDuration() })
}
