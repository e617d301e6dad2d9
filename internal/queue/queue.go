// Package queue defines the uniform send/receive contract shared by all
// message broker backends. Concrete adapters live in sub-packages (kafka,
// rabbitmq, memory) and are built through the factory package, so business
// logic can depend on Adapter without knowing which broker sits behind it.
package queue

import (
	"context"
	"fmt"
)

// Kind identifies a backend technology.
type Kind string

const (
	// KindKafka is the streaming-log backend.
	KindKafka Kind = "kafka"
	// KindRabbitMQ is the broker-queue backend.
	KindRabbitMQ Kind = "rabbitmq"
	// KindMemory is the in-process backend used by tests.
	KindMemory Kind = "memory"
)

// IsValid returns true if the kind names a broker backend the factory can build.
func (k Kind) IsValid() bool {
	return k == KindKafka || k == KindRabbitMQ
}

// ParseKind converts user input into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Semantics describes what a caller gets back from Receive.
type Semantics string

const (
	// LogReplay means records stay in an append-only log after being read.
	// Receive advances this adapter's consumer position; other consumer
	// groups still observe the same records.
	LogReplay Semantics = "log-replay"

	// DestructiveDequeue means a received message is removed from the queue
	// and no other consumer will see it.
	DestructiveDequeue Semantics = "destructive-dequeue"
)

// Descriptor identifies where an adapter connects and which topic or queue
// it publishes to.
type Descriptor struct {
	// Address is the broker address in host:port format.
	Address string `yaml:"address"`

	// Destination is the topic or queue name.
	Destination string `yaml:"destination"`
}

// Validate returns an error if any connection parameter is missing.
func (d Descriptor) Validate() error {
	if d.Address == "" {
		return fmt.Errorf("descriptor address is required")
	}
	if d.Destination == "" {
		return fmt.Errorf("descriptor destination is required")
	}
	return nil
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return d.Address + "/" + d.Destination
}

// Adapter wraps one backend connection behind a uniform contract.
// Implementations own their connection and release it in Close.
// They are not safe for concurrent Send/Receive; wrap with Synchronized
// when an adapter is shared between goroutines.
type Adapter[T any] interface {
	// Send publishes a message to the adapter's destination.
	// A nil error means the local client call succeeded; no broker-side
	// delivery acknowledgment is surfaced.
	Send(ctx context.Context, msg T) error

	// Receive fetches one message from source. ok is false when no message
	// was available before the backend's poll window or ctx elapsed.
	// The adapter opens or reuses the subscription to source and closes it
	// in Close.
	Receive(ctx context.Context, source string) (msg T, ok bool, err error)

	// Close releases all resources held by the adapter.
	// Calling Close more than once returns nil.
	Close() error

	// Semantics reports the delivery model of Receive.
	Semantics() Semantics

	// Kind reports the backend technology.
	Kind() Kind
}
