// Package demo runs the send-then-receive demonstration against every
// configured backend.
package demo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"queuekit/internal/queue"
	"queuekit/internal/strategy"
)

// Opener builds a string adapter for a backend. factory.Create satisfies it
// once bound to settings and a codec.
type Opener func(ctx context.Context, kind queue.Kind, desc queue.Descriptor) (queue.Adapter[string], error)

// Step is one backend exercised by the run.
type Step struct {
	Name       string
	Kind       queue.Kind
	Descriptor queue.Descriptor
	Message    string

	// Abort stops the run when this step fails.
	Abort bool
}

// DefaultSteps returns the Kafka step followed by the RabbitMQ step.
// A Kafka failure is reported and the run moves on; a RabbitMQ failure
// ends the run.
func DefaultSteps(kafkaDesc, rabbitDesc queue.Descriptor) []Step {
	return []Step{
		{Name: "Kafka", Kind: queue.KindKafka, Descriptor: kafkaDesc, Message: "Hello from Kafka!"},
		{Name: "RabbitMQ", Kind: queue.KindRabbitMQ, Descriptor: rabbitDesc, Message: "Hello from RabbitMQ!", Abort: true},
	}
}

// Runner executes demonstration steps.
type Runner struct {
	open   Opener
	out    io.Writer
	logger *slog.Logger
}

// NewRunner creates a runner printing results to out.
func NewRunner(open Opener, out io.Writer, logger *slog.Logger) *Runner {
	return &Runner{
		open:   open,
		out:    out,
		logger: logger,
	}
}

// Run executes steps in order. It returns the joined errors of every step
// that failed.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	var errs []error

	for _, step := range steps {
		if err := r.runStep(ctx, step); err != nil {
			err = fmt.Errorf("%s: %w", step.Name, err)
			r.logger.Error("demo step failed", "backend", step.Kind, "error", err)
			errs = append(errs, err)
			if step.Abort {
				break
			}
		}
	}

	return errors.Join(errs...)
}

// runStep opens an adapter, sends the step message, receives once from the
// same destination and prints the result. The adapter is always closed; a
// close failure is only logged so it never replaces the step's result.
func (r *Runner) runStep(ctx context.Context, step Step) error {
	adapter, err := r.open(ctx, step.Kind, step.Descriptor)
	if err != nil {
		return err
	}

	s := strategy.New(adapter, r.logger)
	defer func() { _ = s.Close() }()

	r.logger.Info("running demo step",
		"backend", step.Kind,
		"destination", step.Descriptor.Destination,
		"semantics", s.Semantics(),
	)

	if err := s.Send(ctx, step.Message); err != nil {
		return err
	}

	msg, ok, err := s.Receive(ctx, step.Descriptor.Destination)
	if err != nil {
		return err
	}

	if !ok {
		fmt.Fprintf(r.out, "No message received from %s\n", step.Name)
		return nil
	}
	fmt.Fprintf(r.out, "Received from %s: %s\n", step.Name, msg)
	return nil
}
