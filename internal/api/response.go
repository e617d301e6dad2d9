// Package api exposes queue adapters over HTTP, along with health and
// Prometheus endpoints.
package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"queuekit/internal/queue"
)

// APIResponse is the JSON envelope of every response with a body.
type APIResponse struct {
	Success   bool        `json:"success"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
}

// APIError is the error part of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
)

// respond writes the envelope with status. The request id is the one set
// by the requestid middleware, if any.
func respond(c *fiber.Ctx, status int, data interface{}, apiErr *APIError) error {
	rid, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIResponse{
		Success:   apiErr == nil,
		RequestID: rid,
		Data:      data,
		Error:     apiErr,
	})
}

// Success writes 200 with data.
func Success(c *fiber.Ctx, data interface{}) error {
	return respond(c, fiber.StatusOK, data, nil)
}

// Accepted writes 202 with data.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return respond(c, fiber.StatusAccepted, data, nil)
}

// NoContent writes 204 without a body.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// Error writes an error envelope.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return respond(c, status, nil, &APIError{Code: code, Message: message})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, ErrCodeBadRequest, message)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, ErrCodeForbidden, message)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, ErrCodeNotFound, message)
}

// BadGateway reports a failed broker call.
func BadGateway(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, ErrCodeBackendUnavailable, message)
}

func InternalError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, ErrCodeInternalError, message)
}

// QueueError maps an adapter error to a response. Codec rejections are 400
// and broker failures are 502.
func QueueError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, queue.ErrCodec):
		return BadRequest(c, err.Error())
	case errors.Is(err, queue.ErrClosed):
		return InternalError(c, "queue is closed")
	default:
		return BadGateway(c, err.Error())
	}
}
