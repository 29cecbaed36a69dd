package cache

import (
	"slices"
	"sync"
)

// Cache is the read/write surface of a keyed value cache.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, val V)
	Delete(key K)
}

// Sorted is a concurrency-safe map that keeps its keys ordered by cmp, so
// iteration is deterministic. Entries are never evicted.
type Sorted[K comparable, V any] struct {
	mu   sync.RWMutex
	cmp  func(a, b K) int
	data map[K]V
	keys []K
}

func NewSorted[K comparable, V any](cmp func(a, b K) int) *Sorted[K, V] {
	return &Sorted[K, V]{cmp: cmp, data: map[K]V{}}
}

func (s *Sorted[K, V]) Get(key K) (val V, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok = s.data[key]
	return
}

func (s *Sorted[K, V]) Has(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

func (s *Sorted[K, V]) Put(key K, val V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		i, _ := slices.BinarySearchFunc(s.keys, key, s.cmp)
		s.keys = slices.Insert(s.keys, i, key)
	}
	s.data[key] = val
}

func (s *Sorted[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	if i, found := slices.BinarySearchFunc(s.keys, key, s.cmp); found {
		s.keys = slices.Delete(s.keys, i, i+1)
	}
}

func (s *Sorted[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns a copy of all keys in order.
func (s *Sorted[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.keys)
}

// Range calls fn for every entry in key order until fn returns false. It
// iterates over a snapshot of the keys, so fn may modify the cache.
func (s *Sorted[K, V]) Range(fn func(key K, val V) bool) {
	for _, k := range s.Keys() {
		v, ok := s.Get(k)
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

var _ Cache[string, any] = (*Sorted[string, any])(nil)
