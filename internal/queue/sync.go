package queue

import (
	"context"
	"sync"
)

// synchronized serializes all calls to the wrapped adapter.
type synchronized[T any] struct {
	mu    sync.Mutex
	inner Adapter[T]
}

// Synchronized returns an Adapter that holds a mutex around every call to a,
// making it safe to share between goroutines. A blocking Receive holds the
// lock for its whole poll window.
func Synchronized[T any](a Adapter[T]) Adapter[T] {
	if s, ok := a.(*synchronized[T]); ok {
		return s
	}
	return &synchronized[T]{inner: a}
}

func (s *synchronized[T]) Send(ctx context.Context, msg T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Send(ctx, msg)
}

func (s *synchronized[T]) Receive(ctx context.Context, source string) (T, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Receive(ctx, source)
}

func (s *synchronized[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

func (s *synchronized[T]) Semantics() Semantics { return s.inner.Semantics() }

func (s *synchronized[T]) Kind() Kind { return s.inner.Kind() }
