// Package ds provides generic data structures shared by the stores.
package ds

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

type StringSet = Set[string]

// Set is an insertion-ordered set that is safe for concurrent use. Ordered
// iteration keeps logs and registries deterministic.
type Set[T comparable] struct {
	mu    sync.RWMutex
	items map[T]struct{}
	order []T
}

// NewSet creates a new set with the given items.
func NewSet[T comparable](items ...T) *Set[T] {
	s := &Set[T]{items: make(map[T]struct{}, len(items))}
	s.Add(items...)
	return s
}

// NewStringSet creates a new string set with the given items.
func NewStringSet(items ...string) *StringSet { return NewSet(items...) }

func (s *Set[T]) String() string { return fmt.Sprintf("%v", s.Values()) }

// Add adds the given values and reports how many were not present before.
func (s *Set[T]) Add(values ...T) (added int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		if _, ok := s.items[v]; ok {
			continue
		}
		s.items[v] = struct{}{}
		s.order = append(s.order, v)
		added++
	}
	return added
}

// Remove removes the given values.
func (s *Set[T]) Remove(values ...T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		delete(s.items, v)
	}
	s.order = slices.DeleteFunc(s.order, func(v T) bool {
		_, ok := s.items[v]
		return !ok
	})
}

func (s *Set[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Set[T]) Contains(v T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[v]
	return ok
}

// ContainsAll reports whether every given value is present. It is true for
// no values.
func (s *Set[T]) ContainsAll(values ...T) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range values {
		if _, ok := s.items[v]; !ok {
			return false
		}
	}
	return true
}

// Values returns a copy of the elements in insertion order.
func (s *Set[T]) Values() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

func (s *Set[T]) MarshalJSON() ([]byte, error) { return json.Marshal(s.Values()) }

func (s *Set[T]) UnmarshalJSON(data []byte) error {
	var values []T
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = make(map[T]struct{}, len(values))
	s.order = nil
	s.mu.Unlock()
	s.Add(values...)
	return nil
}
