package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"queuekit/internal/config"
	"queuekit/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(address string) config.RabbitMQConfig {
	return config.RabbitMQConfig{
		Descriptor:  queue.Descriptor{Address: address, Destination: "my-rabbitmq-queue"},
		DialTimeout: 500 * time.Millisecond,
	}
}

func TestNew_UnreachableBroker(t *testing.T) {
	a, err := New[string](testConfig("127.0.0.1:1"), queue.StringCodec{}, testLogger())
	if err == nil {
		t.Fatal("expected construction error for unreachable broker")
	}
	if a != nil {
		t.Error("adapter must be nil when construction fails")
	}
	if !errors.Is(err, queue.ErrConstruction) {
		t.Errorf("expected ErrConstruction, got %v", err)
	}
}

func TestNew_InvalidArguments(t *testing.T) {
	if _, err := New[string](config.RabbitMQConfig{}, queue.StringCodec{}, testLogger()); !errors.Is(err, queue.ErrConstruction) {
		t.Errorf("empty descriptor: expected ErrConstruction, got %v", err)
	}
	if _, err := New[string](testConfig("localhost:5672"), nil, testLogger()); !errors.Is(err, queue.ErrConstruction) {
		t.Errorf("nil codec: expected ErrConstruction, got %v", err)
	}
}

func TestAdapter_ClosedAdapter(t *testing.T) {
	a := &Adapter[string]{cfg: testConfig("localhost:5672"), codec: queue.StringCodec{}, logger: testLogger()}

	if err := a.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}

	if err := a.Send(context.Background(), "late"); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Send after Close: expected ErrClosed, got %v", err)
	}
	_, ok, err := a.Receive(context.Background(), "my-rabbitmq-queue")
	if ok || !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Receive after Close: expected ErrClosed, got ok=%v err=%v", ok, err)
	}
}

func TestAdapter_ReceiveValidation(t *testing.T) {
	a := &Adapter[string]{cfg: testConfig("localhost:5672"), codec: queue.StringCodec{}, logger: testLogger()}

	if _, _, err := a.Receive(context.Background(), ""); !errors.Is(err, queue.ErrReceive) {
		t.Errorf("empty source: expected ErrReceive, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := a.Receive(ctx, "my-rabbitmq-queue"); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled ctx: expected context.Canceled, got %v", err)
	}
}

func TestAdapter_Semantics(t *testing.T) {
	a := &Adapter[string]{}
	if a.Semantics() != queue.DestructiveDequeue {
		t.Errorf("Semantics = %v, want %v", a.Semantics(), queue.DestructiveDequeue)
	}
	if a.Kind() != queue.KindRabbitMQ {
		t.Errorf("Kind = %v, want %v", a.Kind(), queue.KindRabbitMQ)
	}
}

func TestAdapter_ReceiveFromOtherSourceNeedsConnection(t *testing.T) {
	// Built without dialing: no connection and no shared channel.
	a := &Adapter[string]{cfg: testConfig("localhost:5672"), codec: queue.StringCodec{}, logger: testLogger()}

	for _, source := range []string{"my-rabbitmq-queue", "missing-queue"} {
		_, ok, err := a.Receive(context.Background(), source)
		if ok {
			t.Errorf("%s: expected no message", source)
		}
		if !errors.Is(err, queue.ErrReceive) || !errors.Is(err, queue.ErrClosed) {
			t.Errorf("%s: expected ErrReceive wrapping ErrClosed, got %v", source, err)
		}
	}
}
