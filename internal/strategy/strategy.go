// Package strategy provides the selection layer call sites program against.
// A Strategy is bound to one adapter when it is built and forwards every
// call to it unchanged, recording metrics on the way through.
package strategy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"queuekit/internal/metrics"
	"queuekit/internal/queue"
)

// Strategy delegates send and receive to the adapter chosen at construction.
type Strategy[T any] struct {
	adapter queue.Adapter[T]
	logger  *slog.Logger
}

var _ queue.Adapter[string] = (*Strategy[string])(nil)

// New creates a strategy around adapter.
func New[T any](adapter queue.Adapter[T], logger *slog.Logger) *Strategy[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Strategy[T]{
		adapter: adapter,
		logger:  logger.With("backend", string(adapter.Kind())),
	}
}

// Send forwards msg to the adapter.
func (s *Strategy[T]) Send(ctx context.Context, msg T) error {
	start := time.Now()
	err := s.adapter.Send(ctx, msg)
	s.observe(queue.OpSend, start, err)
	if err != nil {
		return err
	}

	metrics.MessagesSentTotal.WithLabelValues(string(s.adapter.Kind())).Inc()
	return nil
}

// Receive forwards to the adapter. ok is false when nothing was available.
func (s *Strategy[T]) Receive(ctx context.Context, source string) (T, bool, error) {
	start := time.Now()
	msg, ok, err := s.adapter.Receive(ctx, source)
	s.observe(queue.OpReceive, start, err)
	if err != nil {
		return msg, false, err
	}

	result := metrics.ResultEmpty
	if ok {
		result = metrics.ResultMessage
	}
	metrics.MessagesReceivedTotal.WithLabelValues(string(s.adapter.Kind()), result).Inc()
	return msg, ok, nil
}

// Close closes the adapter. Errors are logged and returned.
func (s *Strategy[T]) Close() error {
	start := time.Now()
	err := s.adapter.Close()
	s.observe(queue.OpClose, start, err)
	if err != nil {
		s.logger.Error("failed to close adapter", "error", err)
	}
	return err
}

// Semantics reports the delivery model of the underlying adapter.
func (s *Strategy[T]) Semantics() queue.Semantics { return s.adapter.Semantics() }

// Kind reports the backend of the underlying adapter.
func (s *Strategy[T]) Kind() queue.Kind { return s.adapter.Kind() }

func (s *Strategy[T]) observe(op queue.Op, start time.Time, err error) {
	backend := string(s.adapter.Kind())
	metrics.OperationDuration.WithLabelValues(backend, string(op)).Observe(time.Since(start).Seconds())

	if err == nil {
		return
	}

	// Codec failures are counted under their own op.
	label := op
	var qerr *queue.Error
	if errors.As(err, &qerr) {
		label = qerr.Op
	}
	metrics.OperationErrorsTotal.WithLabelValues(backend, string(label)).Inc()
}
