// Package factory builds queue adapters from a backend kind and a connection
// descriptor. Every call returns a fresh adapter bound to its own connection;
// nothing is cached.
package factory

import (
	"context"
	"fmt"
	"log/slog"

	"queuekit/internal/config"
	"queuekit/internal/queue"
	"queuekit/internal/queue/kafka"
	"queuekit/internal/queue/rabbitmq"
)

// Settings carries the backend tuning applied to every adapter the factory
// builds. The address and destination embedded in each section are ignored;
// the descriptor passed to Create wins.
type Settings struct {
	Kafka    config.KafkaConfig
	RabbitMQ config.RabbitMQConfig
}

// SettingsFrom extracts factory settings from the application config.
func SettingsFrom(cfg *config.Config) Settings {
	return Settings{
		Kafka:    cfg.Kafka,
		RabbitMQ: cfg.RabbitMQ,
	}
}

// Create builds an adapter of the given kind for desc.
// The returned error is a queue construction error; no adapter is returned
// alongside it.
func Create[T any](
	ctx context.Context,
	kind queue.Kind,
	desc queue.Descriptor,
	settings Settings,
	codec queue.Codec[T],
	logger *slog.Logger,
) (queue.Adapter[T], error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := desc.Validate(); err != nil {
		return nil, queue.ConstructionError(kind, err)
	}

	logger.Debug("creating queue adapter", "kind", kind, "descriptor", desc.String())

	switch kind {
	case queue.KindKafka:
		cfg := settings.Kafka
		cfg.Descriptor = desc
		a, err := kafka.New(ctx, cfg, codec, logger)
		if err != nil {
			return nil, err
		}
		return a, nil

	case queue.KindRabbitMQ:
		cfg := settings.RabbitMQ
		cfg.Descriptor = desc
		a, err := rabbitmq.New(cfg, codec, logger)
		if err != nil {
			return nil, err
		}
		return a, nil

	default:
		return nil, queue.ConstructionError(kind, fmt.Errorf("%w: %q", queue.ErrUnknownKind, kind))
	}
}
