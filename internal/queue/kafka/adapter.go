// Package kafka provides the streaming-log implementation of queue.Adapter.
//
// Send appends to a topic through a single kafka.Writer. Receive joins a
// consumer group on first use of a source and keeps that reader open for
// later calls, so records are read in partition order and committed one by
// one. Records stay in the log after being read (queue.LogReplay).
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"queuekit/internal/config"
	"queuekit/internal/queue"
)

// Adapter implements queue.Adapter using Kafka.
type Adapter[T any] struct {
	cfg     config.KafkaConfig
	codec   queue.Codec[T]
	keyFunc func(T) []byte
	logger  *slog.Logger

	writer *kafka.Writer

	mu     sync.Mutex
	subs   map[string]*subscription
	uses   uint64
	closed bool
}

// defaultMaxSubscriptions bounds open readers when the config leaves it unset.
const defaultMaxSubscriptions = 16

// joinGroupBackoff is how long a reader waits between attempts to join its
// consumer group. A broken broker logs an error at least once per attempt.
const joinGroupBackoff = 5 * time.Second

// subscription is one long-lived reader and the last error it reported.
// kafka-go retries broker failures inside the reader, so FetchMessage only
// ever sees the poll deadline; the error log is how Receive tells a dead
// broker apart from an empty topic.
type subscription struct {
	reader *kafka.Reader

	// lastUse orders subscriptions for eviction; guarded by the adapter's mu.
	lastUse uint64

	mu      sync.Mutex
	lastErr string
	errAt   time.Time
}

// logError is the reader's ErrorLogger.
func (s *subscription) logError(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = fmt.Sprintf(format, args...)
	s.errAt = time.Now()
}

// errorAfter returns the last reported error if it was logged after t.
func (s *subscription) errorAfter(t time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errAt.IsZero() || !s.errAt.After(t) {
		return "", false
	}
	return s.lastErr, true
}

var _ queue.Adapter[string] = (*Adapter[string])(nil)

// Option customizes an Adapter.
type Option[T any] func(*Adapter[T])

// WithKeyFunc sets the function computing each record's partition key.
// Records with equal keys land on the same partition and keep their order.
// By default every record is keyed by the destination topic name.
func WithKeyFunc[T any](f func(T) []byte) Option[T] {
	return func(a *Adapter[T]) {
		a.keyFunc = f
	}
}

// New creates a Kafka adapter for cfg.Destination on cfg.Address.
// It dials the broker once to fail fast when it is unreachable.
func New[T any](ctx context.Context, cfg config.KafkaConfig, codec queue.Codec[T], logger *slog.Logger, opts ...Option[T]) (*Adapter[T], error) {
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, queue.ConstructionError(queue.KindKafka, err)
	}
	if codec == nil {
		return nil, queue.ConstructionError(queue.KindKafka, fmt.Errorf("codec is required"))
	}
	if _, err := startOffset(cfg.StartOffset); err != nil {
		return nil, queue.ConstructionError(queue.KindKafka, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := ping(ctx, cfg.Address, cfg.DialTimeout); err != nil {
		return nil, queue.ConstructionError(queue.KindKafka, err)
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Address),
		Topic:                  cfg.Destination,
		Balancer:               &kafka.Hash{}, // Use key-based partitioning
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: cfg.AutoCreateTopic,
	}

	a := &Adapter[T]{
		cfg:     cfg,
		codec:   codec,
		logger:  logger,
		writer:  writer,
		subs:    make(map[string]*subscription),
	}
	for _, opt := range opts {
		opt(a)
	}

	logger.Info("kafka adapter ready",
		"address", cfg.Address,
		"topic", cfg.Destination,
	)

	return a, nil
}

// ping opens and closes one connection to the broker.
func ping(ctx context.Context, address string, timeout time.Duration) error {
	dialer := &kafka.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to kafka at %s: %w", address, err)
	}
	return conn.Close()
}

// Send appends msg to the adapter's topic.
func (a *Adapter[T]) Send(ctx context.Context, msg T) error {
	if a.isClosed() {
		return queue.SendError(queue.KindKafka, queue.ErrClosed)
	}

	value, err := a.codec.Encode(msg)
	if err != nil {
		return queue.CodecError(queue.KindKafka, err)
	}

	record := kafka.Message{
		Key:   a.keyFor(msg),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(a.codec.ContentType())},
		},
	}

	if err := a.writer.WriteMessages(ctx, record); err != nil {
		return queue.SendError(queue.KindKafka, fmt.Errorf("failed to write message to kafka: %w", err))
	}

	a.logger.Debug("kafka message sent", "topic", a.cfg.Destination, "bytes", len(value))
	return nil
}

// Receive returns the next record from source, waiting at most the
// configured poll timeout. Reaching a deadline, either the poll window or
// one set on ctx, reports no message unless the reader logged broker errors
// during the wait; then it is a receive error. Cancelling ctx is an error.
func (a *Adapter[T]) Receive(ctx context.Context, source string) (T, bool, error) {
	var zero T

	sub, err := a.subscribe(source)
	if err != nil {
		return zero, false, queue.ReceiveError(queue.KindKafka, err)
	}

	pollCtx, cancel := context.WithTimeout(ctx, a.cfg.PollTimeout)
	defer cancel()

	// A reader that cannot reach the broker logs at least once per retry
	// cycle, so an error within one cycle of the window means it is still failing.
	healthyAfter := time.Now().Add(-(joinGroupBackoff + a.cfg.DialTimeout))
	record, err := sub.reader.FetchMessage(pollCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			if last, failing := sub.errorAfter(healthyAfter); failing {
				return zero, false, queue.ReceiveError(queue.KindKafka,
					fmt.Errorf("no message from %s within poll window, reader is failing: %s", source, last))
			}
			a.logger.Debug("kafka poll window elapsed", "topic", source)
			return zero, false, nil
		}
		return zero, false, queue.ReceiveError(queue.KindKafka, fmt.Errorf("failed to fetch message: %w", err))
	}

	msg, decodeErr := a.codec.Decode(record.Value)

	// Commit even when decoding fails so a malformed record is not
	// redelivered on every call.
	if err := sub.reader.CommitMessages(ctx, record); err != nil {
		a.logger.Error("failed to commit message",
			"error", err,
			"topic", source,
			"partition", record.Partition,
			"offset", record.Offset,
		)
		return zero, false, queue.ReceiveError(queue.KindKafka, fmt.Errorf("failed to commit message: %w", err))
	}

	if decodeErr != nil {
		return zero, false, queue.CodecError(queue.KindKafka, decodeErr)
	}

	return msg, true, nil
}

// subscribe returns the long-lived reader for source, creating it on
// first use. When the adapter already holds MaxSubscriptions readers the
// least recently used one is closed first.
func (a *Adapter[T]) subscribe(source string) (*subscription, error) {
	if source == "" {
		return nil, fmt.Errorf("source topic is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, queue.ErrClosed
	}
	a.uses++
	if sub, ok := a.subs[source]; ok {
		sub.lastUse = a.uses
		return sub, nil
	}

	offset, err := startOffset(a.cfg.StartOffset)
	if err != nil {
		return nil, err
	}

	if len(a.subs) >= a.maxSubscriptions() {
		a.evictLocked()
	}

	groupID := a.groupFor(source)
	sub := &subscription{lastUse: a.uses}
	sub.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{a.cfg.Address},
		Topic:       source,
		GroupID:     groupID,
		StartOffset: offset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		Dialer:      &kafka.Dialer{Timeout: a.cfg.DialTimeout},
		ErrorLogger: kafka.LoggerFunc(sub.logError),

		JoinGroupBackoff: joinGroupBackoff,
	})
	a.subs[source] = sub

	a.logger.Info("kafka subscription opened", "topic", source, "group", groupID)
	return sub, nil
}

// evictLocked closes the least recently used subscription. a.mu must be held.
func (a *Adapter[T]) evictLocked() {
	var (
		oldest string
		at     uint64
	)
	for source, sub := range a.subs {
		if oldest == "" || sub.lastUse < at {
			oldest, at = source, sub.lastUse
		}
	}
	if oldest == "" {
		return
	}

	if err := a.subs[oldest].reader.Close(); err != nil {
		a.logger.Warn("failed to close evicted kafka subscription", "error", err, "topic", oldest)
	}
	delete(a.subs, oldest)
	a.logger.Info("kafka subscription evicted", "topic", oldest)
}

func (a *Adapter[T]) maxSubscriptions() int {
	if a.cfg.MaxSubscriptions > 0 {
		return a.cfg.MaxSubscriptions
	}
	return defaultMaxSubscriptions
}

// groupFor returns the consumer group joined for source. Without a
// configured group every subscription joins a fresh source-<uuid> group; the
// broker keeps its committed offsets until offsets.retention.minutes expires.
func (a *Adapter[T]) groupFor(source string) string {
	if a.cfg.ConsumerGroup != "" {
		return a.cfg.ConsumerGroup
	}
	return source + "-" + uuid.NewString()
}

func (a *Adapter[T]) keyFor(msg T) []byte {
	if a.keyFunc != nil {
		return a.keyFunc(msg)
	}
	return []byte(a.cfg.Destination)
}

func startOffset(s string) (int64, error) {
	switch s {
	case "", "first":
		return kafka.FirstOffset, nil
	case "last":
		return kafka.LastOffset, nil
	default:
		return 0, fmt.Errorf("unknown start offset %q", s)
	}
}

func (a *Adapter[T]) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Close closes every open subscription and the writer.
func (a *Adapter[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for source, sub := range a.subs {
		if err := sub.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close reader for %s: %w", source, err))
		}
		delete(a.subs, source)
	}
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
		}
	}

	return queue.CloseError(queue.KindKafka, errors.Join(errs...))
}

// Semantics implements queue.Adapter.
func (a *Adapter[T]) Semantics() queue.Semantics { return queue.LogReplay }

// Kind implements queue.Adapter.
func (a *Adapter[T]) Kind() queue.Kind { return queue.KindKafka }
