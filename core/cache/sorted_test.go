package cache

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSorted_Order(t *testing.T) {
	c := NewSorted[string, int](strings.Compare)
	for i, k := range []string{"d", "b", "a", "c"} {
		c.Put(k, i)
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, c.Keys())
	require.Equal(t, 4, c.Len())

	c.Put("b", 42)
	v, ok := c.Get("b")
	require.True(t, ok)
	require.Equal(t, 42, v)
	require.Equal(t, 4, c.Len())

	c.Delete("c")
	c.Delete("missing")
	require.Equal(t, []string{"a", "b", "d"}, c.Keys())
	require.False(t, c.Has("c"))
}

func TestSorted_RangeStops(t *testing.T) {
	c := NewSorted[string, int](strings.Compare)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	var seen []string
	c.Range(func(k string, _ int) bool {
		seen = append(seen, k)
		return k != "b"
	})
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestSorted_Concurrent(t *testing.T) {
	c := NewSorted[int, int](func(a, b int) int { return a - b })

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Put(w*100+i, i)
				_, _ = c.Get(i)
			}
		}()
	}
	wg.Wait()

	keys := c.Keys()
	require.Len(t, keys, 400)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}
