package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"queuekit/internal/config"
)

// Server serves the queue routes, health and metrics.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger
	queues *QueueHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config       *config.ServerConfig
	Logger       *slog.Logger
	QueueHandler *QueueHandler
}

// NewServer creates a server with middleware and routes registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: deps.Config,
		logger: logger.With("component", "http"),
		queues: deps.QueueHandler,
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           deps.Config.ReadTimeout,
		WriteTimeout:          deps.Config.WriteTimeout,
		IdleTimeout:           deps.Config.IdleTimeout,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(requestid.New())
	s.app.Use(s.logRequest)

	s.app.Get("/healthz", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1/queues/:kind")
	v1.Post("/messages", s.queues.Send)
	v1.Get("/messages", s.queues.Receive)

	return s
}

// logRequest logs one line per request at debug level, or warn for 5xx.
func (s *Server) logRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	level := slog.LevelDebug
	if status >= fiber.StatusInternalServerError {
		level = slog.LevelWarn
	}
	rid, _ := c.Locals("requestid").(string)
	s.logger.Log(c.Context(), level, "request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"latency", time.Since(start),
		"request_id", rid,
	)
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	return Success(c, map[string]interface{}{
		"status":   "healthy",
		"backends": s.queues.Statuses(),
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// errorHandler wraps errors that escape a handler, such as unmatched routes,
// in the response envelope.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusNotFound:
			return NotFound(c, fe.Message)
		case fiber.StatusBadRequest:
			return BadRequest(c, fe.Message)
		}
		return Error(c, fe.Code, ErrCodeInternalError, fe.Message)
	}
	return InternalError(c, "unexpected error: "+err.Error())
}
