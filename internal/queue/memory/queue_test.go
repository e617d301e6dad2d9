package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"queuekit/internal/queue"
)

func TestQueue_RoundTripAndDestructiveDequeue(t *testing.T) {
	q := NewQueue[string]("my-rabbitmq-queue", 10, queue.StringCodec{})
	defer q.Close()
	ctx := context.Background()

	if err := q.Send(ctx, "Hello from RabbitMQ!"); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if q.Len("my-rabbitmq-queue") != 1 {
		t.Errorf("Len = %d, want 1", q.Len("my-rabbitmq-queue"))
	}

	msg, ok, err := q.Receive(ctx, "my-rabbitmq-queue")
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if !ok {
		t.Fatal("expected a message")
	}
	if msg != "Hello from RabbitMQ!" {
		t.Errorf("msg = %q, want %q", msg, "Hello from RabbitMQ!")
	}

	_, ok, err = q.Receive(ctx, "my-rabbitmq-queue")
	if err != nil {
		t.Fatalf("second Receive error: %v", err)
	}
	if ok {
		t.Error("second Receive should find the queue empty")
	}
}

func TestQueue_PreservesOrder(t *testing.T) {
	q := NewQueue[int]("numbers", 10, queue.JSONCodec[int]{})
	defer q.Close()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := q.Send(ctx, i); err != nil {
			t.Fatalf("Send(%d) error: %v", i, err)
		}
	}
	for want := 1; want <= 3; want++ {
		got, ok, err := q.Receive(ctx, "numbers")
		if err != nil || !ok {
			t.Fatalf("Receive: ok=%v err=%v", ok, err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestQueue_UnknownSourceIsEmpty(t *testing.T) {
	q := NewQueue[string]("a", 1, queue.StringCodec{})
	defer q.Close()

	_, ok, err := q.Receive(context.Background(), "b")
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if ok {
		t.Error("expected no message from an unused source")
	}
}

func TestQueue_SendBlocksWhenFull(t *testing.T) {
	q := NewQueue[string]("a", 1, queue.StringCodec{})
	defer q.Close()

	if err := q.Send(context.Background(), "first"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.Send(ctx, "second")
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
	if !errors.Is(err, queue.ErrSend) {
		t.Errorf("expected ErrSend, got %v", err)
	}
}

func TestQueue_CodecFailure(t *testing.T) {
	q := NewQueue[string]("a", 1, queue.StringCodec{})
	defer q.Close()

	err := q.Send(context.Background(), string([]byte{0xff, 0xfe}))
	if !errors.Is(err, queue.ErrCodec) {
		t.Errorf("expected ErrCodec, got %v", err)
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[string]("a", 1, queue.StringCodec{})

	if err := q.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}

	if err := q.Send(context.Background(), "x"); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Send after Close: expected ErrClosed, got %v", err)
	}
	if _, _, err := q.Receive(context.Background(), "a"); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("Receive after Close: expected ErrClosed, got %v", err)
	}
}
