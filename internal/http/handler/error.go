package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"imagehost/internal/http/middleware"
)

// errorPayload is the body of every error response.
type errorPayload struct {
	Error string `json:"error"`
}

// writeError writes {"error": message} with the given status.
func writeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(errorPayload{Error: message})
}

// ErrorHandler returns the Fiber global error handler.
//
// Framework errors (*fiber.Error: unknown route, wrong method, body too large,
// rate limited) keep their status and message. Anything else is an unhandled fault:
// it is logged at error level and reported as 500 with its description.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return writeError(c, fe.Code, fe.Message)
		}

		rid, _ := c.Locals(middleware.RequestIDLocalKey).(string)
		logger.ErrorContext(c.UserContext(), "unhandled_error",
			slog.String("request_id", rid),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
		return writeError(c, fiber.StatusInternalServerError, err.Error())
	}
}
