// Package rabbitmq provides the broker-queue implementation of queue.Adapter.
//
// The adapter owns one AMQP connection and one channel. Send publishes to
// the declared queue through the default exchange. Receive is a single
// basic.get with auto-ack: it never blocks, and a received message is gone
// from the queue (queue.DestructiveDequeue).
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"queuekit/internal/config"
	"queuekit/internal/queue"
)

// Adapter implements queue.Adapter using RabbitMQ.
type Adapter[T any] struct {
	cfg    config.RabbitMQConfig
	codec  queue.Codec[T]
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

var _ queue.Adapter[string] = (*Adapter[string])(nil)

// New connects to cfg.Address, opens a channel and declares cfg.Destination.
// If any step fails, everything opened before it is closed again.
func New[T any](cfg config.RabbitMQConfig, codec queue.Codec[T], logger *slog.Logger) (*Adapter[T], error) {
	if err := cfg.Descriptor.Validate(); err != nil {
		return nil, queue.ConstructionError(queue.KindRabbitMQ, err)
	}
	if codec == nil {
		return nil, queue.ConstructionError(queue.KindRabbitMQ, fmt.Errorf("codec is required"))
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{
		Dial: amqp.DefaultDial(cfg.DialTimeout),
	})
	if err != nil {
		return nil, queue.ConstructionError(queue.KindRabbitMQ,
			fmt.Errorf("failed to connect to rabbitmq at %s: %w", cfg.Address, err))
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, queue.ConstructionError(queue.KindRabbitMQ, fmt.Errorf("failed to open channel: %w", err))
	}

	if _, err := channel.QueueDeclare(
		cfg.Destination,
		cfg.Durable,
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, queue.ConstructionError(queue.KindRabbitMQ,
			fmt.Errorf("failed to declare queue %s: %w", cfg.Destination, err))
	}

	logger.Info("rabbitmq adapter ready",
		"address", cfg.Address,
		"queue", cfg.Destination,
	)

	return &Adapter[T]{
		cfg:     cfg,
		codec:   codec,
		logger:  logger,
		conn:    conn,
		channel: channel,
	}, nil
}

// openChannel returns the shared channel, reopening it on the live
// connection if the broker closed it, or ErrClosed.
func (a *Adapter[T]) openChannel() (*amqp.Channel, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.channel == nil {
		return nil, queue.ErrClosed
	}
	if !a.channel.IsClosed() {
		return a.channel, nil
	}

	channel, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to reopen channel: %w", err)
	}
	a.channel = channel
	a.logger.Warn("rabbitmq channel reopened", "queue", a.cfg.Destination)
	return channel, nil
}

// channelFor returns the channel to fetch from source and a func releasing
// it. The adapter's own queue is read on the shared channel. Any other source
// gets a short-lived channel, since the broker closes the channel of a
// basic.get naming a queue that does not exist.
func (a *Adapter[T]) channelFor(source string) (*amqp.Channel, func(), error) {
	if source == a.cfg.Destination {
		channel, err := a.openChannel()
		return channel, func() {}, err
	}

	a.mu.Lock()
	conn := a.conn
	closed := a.closed
	a.mu.Unlock()
	if closed || conn == nil {
		return nil, nil, queue.ErrClosed
	}

	channel, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open channel for %s: %w", source, err)
	}
	release := func() {
		if err := channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			a.logger.Warn("failed to close channel", "error", err, "queue", source)
		}
	}
	return channel, release, nil
}

// Send publishes msg to the adapter's queue.
func (a *Adapter[T]) Send(ctx context.Context, msg T) error {
	channel, err := a.openChannel()
	if err != nil {
		return queue.SendError(queue.KindRabbitMQ, err)
	}

	body, err := a.codec.Encode(msg)
	if err != nil {
		return queue.CodecError(queue.KindRabbitMQ, err)
	}

	publishing := amqp.Publishing{
		ContentType: a.codec.ContentType(),
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Body:        body,
	}
	if a.cfg.Durable {
		publishing.DeliveryMode = amqp.Persistent
	}

	if err := channel.PublishWithContext(ctx,
		"", // default exchange
		a.cfg.Destination,
		false, // mandatory
		false, // immediate
		publishing,
	); err != nil {
		return queue.SendError(queue.KindRabbitMQ, fmt.Errorf("failed to publish message: %w", err))
	}

	a.logger.Debug("rabbitmq message sent",
		"queue", a.cfg.Destination,
		"message_id", publishing.MessageId,
		"bytes", len(body),
	)
	return nil
}

// Receive takes one message from source with auto-ack. It returns
// immediately; ok is false when the queue is empty.
func (a *Adapter[T]) Receive(ctx context.Context, source string) (T, bool, error) {
	var zero T

	if source == "" {
		return zero, false, queue.ReceiveError(queue.KindRabbitMQ, fmt.Errorf("source queue is required"))
	}
	if err := ctx.Err(); err != nil {
		return zero, false, queue.ReceiveError(queue.KindRabbitMQ, err)
	}

	channel, release, err := a.channelFor(source)
	if err != nil {
		return zero, false, queue.ReceiveError(queue.KindRabbitMQ, err)
	}
	defer release()

	delivery, ok, err := channel.Get(source, true)
	if err != nil {
		return zero, false, queue.ReceiveError(queue.KindRabbitMQ, fmt.Errorf("failed to get message from %s: %w", source, err))
	}
	if !ok {
		return zero, false, nil
	}

	msg, err := a.codec.Decode(delivery.Body)
	if err != nil {
		return zero, false, queue.CodecError(queue.KindRabbitMQ, err)
	}

	return msg, true, nil
}

// Close closes the channel and then the connection.
func (a *Adapter[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	if a.channel != nil {
		if err := a.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
		a.channel = nil
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
		a.conn = nil
	}

	return queue.CloseError(queue.KindRabbitMQ, errors.Join(errs...))
}

// Semantics implements queue.Adapter.
func (a *Adapter[T]) Semantics() queue.Semantics { return queue.DestructiveDequeue }

// Kind implements queue.Adapter.
func (a *Adapter[T]) Kind() queue.Kind { return queue.KindRabbitMQ }
