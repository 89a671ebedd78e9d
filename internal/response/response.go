package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the body shape of every API response.
type Envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Error is an HTTP error carrying an optional machine-readable code.
type Error struct {
	Status  int
	Message string
	Code    string
}

func (e *Error) Error() string { return e.Message }

// NewError builds an Error without a code.
func NewError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// WithCode builds an Error with a machine-readable code.
func WithCode(status int, code, message string) *Error {
	return &Error{Status: status, Message: message, Code: code}
}

// Validation reports rejected input as 422 with the first failing message.
func Validation(message string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Message: message}
}

// OK writes a 200 success envelope.
func OK(c *fiber.Ctx, message string, data any) error {
	return Success(c, http.StatusOK, message, data)
}

// Success writes a success envelope with the given status.
func Success(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Status: statusSuccess, Message: message, Data: data})
}

// Fail writes an error envelope.
func Fail(c *fiber.Ctx, status int, message, code string) error {
	return c.Status(status).JSON(Envelope{Status: statusError, Message: message, ErrorCode: code})
}

// ErrorHandler renders handler errors as error envelopes. Unexpected errors
// are logged and reported with a generic message.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return Fail(c, apiErr.Status, apiErr.Message, apiErr.Code)
		}
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return Fail(c, fiberErr.Code, fiberErr.Message, "")
		}

		logger.Error("unhandled request error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return Fail(c, http.StatusInternalServerError, "internal server error", "")
	}
}

// StatusOf returns the HTTP status ErrorHandler will use for err.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return http.StatusInternalServerError
}
