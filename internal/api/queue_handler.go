package api

import (
	"log/slog"
	"sort"

	"github.com/gofiber/fiber/v2"

	"queuekit/internal/queue"
)

// Backend is one adapter exposed over HTTP, together with the destination it
// publishes to. The adapter must be safe for concurrent use; wrap it with
// queue.Synchronized.
type Backend struct {
	Adapter     queue.Adapter[string]
	Destination string

	// Sources are the extra sources clients may receive from. Destination is
	// always allowed.
	Sources []string
}

func (b Backend) allows(source string) bool {
	if source == b.Destination {
		return true
	}
	for _, s := range b.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// BackendStatus describes a backend in the health response.
type BackendStatus struct {
	Kind        queue.Kind      `json:"kind"`
	Destination string          `json:"destination"`
	Semantics   queue.Semantics `json:"semantics"`
}

// QueueHandler handles HTTP requests for sending and receiving messages.
type QueueHandler struct {
	backends map[queue.Kind]Backend
	logger   *slog.Logger
}

// NewQueueHandler creates a new queue handler.
func NewQueueHandler(backends map[queue.Kind]Backend, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{
		backends: backends,
		logger:   logger,
	}
}

// Statuses lists the registered backends ordered by kind.
func (h *QueueHandler) Statuses() []BackendStatus {
	out := make([]BackendStatus, 0, len(h.backends))
	for kind, b := range h.backends {
		out = append(out, BackendStatus{
			Kind:        kind,
			Destination: b.Destination,
			Semantics:   b.Adapter.Semantics(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

func (h *QueueHandler) backend(c *fiber.Ctx) (Backend, bool) {
	b, ok := h.backends[queue.Kind(c.Params("kind"))]
	return b, ok
}

// Send handles POST /v1/queues/:kind/messages
// The raw request body is the message.
func (h *QueueHandler) Send(c *fiber.Ctx) error {
	b, ok := h.backend(c)
	if !ok {
		return NotFound(c, "unknown queue kind")
	}

	body := string(c.Body())
	if body == "" {
		return BadRequest(c, "message body is required")
	}

	if err := b.Adapter.Send(c.Context(), body); err != nil {
		return h.adapterError(c, "send", err)
	}

	return Accepted(c, map[string]string{
		"status":      "accepted",
		"destination": b.Destination,
	})
}

// Receive handles GET /v1/queues/:kind/messages?source=name
// source defaults to the backend's own destination and must be one of the
// backend's allowed sources. Responds 204 when no message is available.
func (h *QueueHandler) Receive(c *fiber.Ctx) error {
	b, ok := h.backend(c)
	if !ok {
		return NotFound(c, "unknown queue kind")
	}

	source := c.Query("source", b.Destination)
	if !b.allows(source) {
		return Forbidden(c, "source is not allowed: "+source)
	}

	msg, ok, err := b.Adapter.Receive(c.Context(), source)
	if err != nil {
		return h.adapterError(c, "receive", err)
	}
	if !ok {
		return NoContent(c)
	}

	return Success(c, map[string]string{
		"source":  source,
		"message": msg,
	})
}

func (h *QueueHandler) adapterError(c *fiber.Ctx, op string, err error) error {
	h.logger.Error("queue operation failed", "op", op, "kind", c.Params("kind"), "error", err)
	return QueueError(c, err)
}
