package integration

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"queuekit/internal/config"
	"queuekit/internal/factory"
	"queuekit/internal/queue"
	"queuekit/internal/strategy"
)

var logger = slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))

func settings() factory.Settings {
	return factory.Settings{
		Kafka: config.KafkaConfig{
			StartOffset:     "first",
			DialTimeout:     5 * time.Second,
			PollTimeout:     15 * time.Second,
			BatchTimeout:    10 * time.Millisecond,
			AutoCreateTopic: true,
		},
		RabbitMQ: config.RabbitMQConfig{
			Username:    os.Getenv("QUEUEKIT_RABBITMQ_USER"),
			Password:    os.Getenv("QUEUEKIT_RABBITMQ_PASSWORD"),
			DialTimeout: 5 * time.Second,
		},
	}
}

func open(kind queue.Kind, address, destination string) queue.Adapter[string] {
	return openWith(settings(), kind, address, destination)
}

func openWith(s factory.Settings, kind queue.Kind, address, destination string) queue.Adapter[string] {
	a, err := factory.Create[string](context.Background(), kind,
		queue.Descriptor{Address: address, Destination: destination},
		s, queue.StringCodec{}, logger)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(func() {
		Expect(a.Close()).To(Succeed())
	})
	return strategy.New(a, logger)
}

var _ = Describe("RabbitMQ adapter", func() {
	var address string

	BeforeEach(func() {
		address = os.Getenv("QUEUEKIT_RABBITMQ_ADDR")
		if address == "" {
			Skip("QUEUEKIT_RABBITMQ_ADDR not set")
		}
	})

	It("round-trips a message and then reports the queue empty", func() {
		name := "queuekit-it-" + uuid.NewString()
		a := open(queue.KindRabbitMQ, address, name)
		ctx := context.Background()

		Expect(a.Semantics()).To(Equal(queue.DestructiveDequeue))
		Expect(a.Send(ctx, "payload-1")).To(Succeed())

		var msg string
		Eventually(func() bool {
			var ok bool
			var err error
			msg, ok, err = a.Receive(ctx, name)
			Expect(err).NotTo(HaveOccurred())
			return ok
		}).WithTimeout(5 * time.Second).Should(BeTrue())
		Expect(msg).To(Equal("payload-1"))

		_, ok, err := a.Receive(ctx, name)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("fails a receive from a missing queue and keeps serving its own", func() {
		name := "queuekit-it-" + uuid.NewString()
		a := open(queue.KindRabbitMQ, address, name)
		ctx := context.Background()

		_, ok, err := a.Receive(ctx, "queuekit-missing-"+uuid.NewString())
		Expect(ok).To(BeFalse())
		Expect(errors.Is(err, queue.ErrReceive)).To(BeTrue(), "got %v", err)

		Expect(a.Send(ctx, "after-missing")).To(Succeed())
		Eventually(func() string {
			msg, _, err := a.Receive(ctx, name)
			Expect(err).NotTo(HaveOccurred())
			return msg
		}).WithTimeout(5 * time.Second).Should(Equal("after-missing"))
	})

	It("delivers Hello from RabbitMQ! on my-rabbitmq-queue", func() {
		a := open(queue.KindRabbitMQ, address, "my-rabbitmq-queue")
		ctx := context.Background()

		// Drain leftovers from earlier runs.
		for {
			_, ok, err := a.Receive(ctx, "my-rabbitmq-queue")
			Expect(err).NotTo(HaveOccurred())
			if !ok {
				break
			}
		}

		Expect(a.Send(ctx, "Hello from RabbitMQ!")).To(Succeed())

		var msg string
		Eventually(func() bool {
			var ok bool
			msg, ok, _ = a.Receive(ctx, "my-rabbitmq-queue")
			return ok
		}).WithTimeout(5 * time.Second).Should(BeTrue())
		Expect(msg).To(Equal("Hello from RabbitMQ!"))

		_, ok, err := a.Receive(ctx, "my-rabbitmq-queue")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("Kafka adapter", func() {
	var address string

	BeforeEach(func() {
		address = os.Getenv("QUEUEKIT_KAFKA_ADDR")
		if address == "" {
			Skip("QUEUEKIT_KAFKA_ADDR not set")
		}
	})

	It("returns records in append order", func() {
		topic := "queuekit-it-" + uuid.NewString()
		a := open(queue.KindKafka, address, topic)
		ctx := context.Background()

		Expect(a.Semantics()).To(Equal(queue.LogReplay))
		Eventually(func() error {
			return a.Send(ctx, "m1")
		}).WithTimeout(30 * time.Second).WithPolling(time.Second).Should(Succeed())
		Expect(a.Send(ctx, "m2")).To(Succeed())

		var got []string
		Eventually(func() []string {
			msg, ok, err := a.Receive(ctx, topic)
			Expect(err).NotTo(HaveOccurred())
			if ok {
				got = append(got, msg)
			}
			return got
		}).WithTimeout(60 * time.Second).Should(HaveLen(2))
		Expect(got).To(Equal([]string{"m1", "m2"}))
	})

	It("reports no message once the topic is drained", func() {
		topic := "queuekit-it-" + uuid.NewString()
		s := settings()
		s.Kafka.PollTimeout = 3 * time.Second
		a := openWith(s, queue.KindKafka, address, topic)
		ctx := context.Background()

		Eventually(func() error {
			return a.Send(ctx, "only")
		}).WithTimeout(30 * time.Second).WithPolling(time.Second).Should(Succeed())

		// The group may still be joining; early polls can fail or come back empty.
		Eventually(func() string {
			msg, _, _ := a.Receive(ctx, topic)
			return msg
		}).WithTimeout(60 * time.Second).Should(Equal("only"))

		_, ok, err := a.Receive(ctx, topic)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("delivers Hello from Kafka! on my-kafka-topic", func() {
		a := open(queue.KindKafka, address, "my-kafka-topic")
		ctx := context.Background()

		Eventually(func() error {
			return a.Send(ctx, "Hello from Kafka!")
		}).WithTimeout(30 * time.Second).WithPolling(time.Second).Should(Succeed())

		// The topic may hold records from earlier runs; read until ours shows up.
		Eventually(func() string {
			msg, _, err := a.Receive(ctx, "my-kafka-topic")
			Expect(err).NotTo(HaveOccurred())
			return msg
		}).WithTimeout(60 * time.Second).Should(Equal("Hello from Kafka!"))
	})
})

var _ = Describe("Construction", func() {
	It("fails for unreachable brokers without returning an adapter", func() {
		for _, kind := range []queue.Kind{queue.KindKafka, queue.KindRabbitMQ} {
			s := settings()
			s.Kafka.DialTimeout = 500 * time.Millisecond
			s.RabbitMQ.DialTimeout = 500 * time.Millisecond

			a, err := factory.Create[string](context.Background(), kind,
				queue.Descriptor{Address: "127.0.0.1:1", Destination: "unreachable"},
				s, queue.StringCodec{}, logger)
			Expect(a).To(BeNil())
			Expect(errors.Is(err, queue.ErrConstruction)).To(BeTrue(), "kind %s: %v", kind, err)
		}
	})
})
