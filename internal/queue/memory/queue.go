// Package memory provides an in-memory implementation of queue.Adapter.
// This is useful for testing and development without external brokers.
// It behaves like the broker-queue backend: Receive never blocks and a
// received message is removed (queue.DestructiveDequeue).
package memory

import (
	"context"
	"fmt"
	"sync"

	"queuekit/internal/queue"
)

// Queue is an in-memory adapter. Each destination is a buffered channel of
// encoded payloads, so messages pass through the codec just as they would on
// a real broker. This implementation is safe for concurrent use.
type Queue[T any] struct {
	destination string
	bufferSize  int
	codec       queue.Codec[T]

	mu     sync.RWMutex
	queues map[string]chan []byte
	closed bool
}

var _ queue.Adapter[string] = (*Queue[string])(nil)

// NewQueue creates an in-memory adapter publishing to destination.
// The buffer size determines how many messages each destination holds
// before Send blocks (or fails if the context is canceled).
func NewQueue[T any](destination string, bufferSize int, codec queue.Codec[T]) *Queue[T] {
	return &Queue[T]{
		destination: destination,
		bufferSize:  bufferSize,
		codec:       codec,
		queues:      make(map[string]chan []byte),
	}
}

// channel returns the buffer for name, creating it if needed.
func (q *Queue[T]) channel(name string) (chan []byte, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, queue.ErrClosed
	}
	ch, ok := q.queues[name]
	q.mu.RUnlock()
	if ok {
		return ch, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, queue.ErrClosed
	}
	if ch, ok = q.queues[name]; !ok {
		ch = make(chan []byte, q.bufferSize)
		q.queues[name] = ch
	}
	return ch, nil
}

// Send encodes msg and appends it to the destination buffer.
// This method blocks if the buffer is full until space is available
// or the context is canceled.
func (q *Queue[T]) Send(ctx context.Context, msg T) error {
	ch, err := q.channel(q.destination)
	if err != nil {
		return queue.SendError(queue.KindMemory, err)
	}

	data, err := q.codec.Encode(msg)
	if err != nil {
		return queue.CodecError(queue.KindMemory, err)
	}

	select {
	case ch <- data:
		return nil
	case <-ctx.Done():
		return queue.SendError(queue.KindMemory, fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err()))
	}
}

// Receive removes and returns the oldest message in source, or reports
// ok == false if source is empty.
func (q *Queue[T]) Receive(ctx context.Context, source string) (T, bool, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, false, queue.ReceiveError(queue.KindMemory, err)
	}

	ch, err := q.channel(source)
	if err != nil {
		return zero, false, queue.ReceiveError(queue.KindMemory, err)
	}

	select {
	case data := <-ch:
		msg, err := q.codec.Decode(data)
		if err != nil {
			return zero, false, queue.CodecError(queue.KindMemory, err)
		}
		return msg, true, nil
	default:
		return zero, false, nil
	}
}

// Close drops all buffered messages. Later calls return nil.
func (q *Queue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	q.queues = nil
	return nil
}

// Len returns the current number of messages buffered for name.
// Useful for testing to verify queue state.
func (q *Queue[T]) Len(name string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.queues[name])
}

// Semantics implements queue.Adapter.
func (q *Queue[T]) Semantics() queue.Semantics { return queue.DestructiveDequeue }

// Kind implements queue.Adapter.
func (q *Queue[T]) Kind() queue.Kind { return queue.KindMemory }
