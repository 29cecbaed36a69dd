// Package perkey provides a scheduler that serializes work per key while
// work for different keys runs concurrently.
//
// The engine in core/es uses a scheduler with a small fixed key space as the
// worker pool that resolves write futures off the event delivery path.
package perkey

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is scheduled on a closed Scheduler.
var ErrClosed = errors.New("scheduler is closed")

// Scheduler runs the tasks of one key sequentially in submission order. Each
// key has its own unbounded queue, so scheduling never blocks. A key's worker
// goroutine exits when its queue runs empty.
type Scheduler[K comparable] struct {
	mu      sync.Mutex
	queues  map[K][]func()
	closed  bool
	running sync.WaitGroup
}

func New[K comparable]() *Scheduler[K] {
	return &Scheduler[K]{queues: map[K][]func(){}}
}

// Go enqueues fn for key and returns without waiting for it to run.
func (s *Scheduler[K]) Go(key K, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	q, active := s.queues[key]
	s.queues[key] = append(q, fn)
	if !active {
		s.running.Add(1)
		go s.run(key)
	}
	return nil
}

// Do schedules fn for key and waits until it has run or ctx is done. A task
// that was scheduled still runs when ctx is done first.
func (s *Scheduler[K]) Do(ctx context.Context, key K, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	if err := s.Go(key, func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks that have not started.
func (s *Scheduler[K]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting tasks and waits until the queued ones have run.
func (s *Scheduler[K]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.running.Wait()
}

func (s *Scheduler[K]) run(key K) {
	defer s.running.Done()
	for {
		s.mu.Lock()
		q := s.queues[key]
		if len(q) == 0 {
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		fn := q[0]
		q[0] = nil
		s.queues[key] = q[1:]
		s.mu.Unlock()

		fn()
	}
}
