package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AppError is a service-layer error that carries the HTTP status it should
// surface as. Services return it instead of reaching into fiber.
type AppError struct {
	Code    int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

func NewAppError(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

var ErrNotFound = NewAppError(fiber.StatusNotFound, "resource not found")

// ErrorHandlerMiddleware converts errors bubbling out of handlers into the
// standard response envelope. Unknown errors become 500s with a generic
// message so internals never leak to clients.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var appErr *AppError
		if errors.As(err, &appErr) {
			return ctx.Status(appErr.Code).JSON(ErrorResponse(appErr.Message))
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("internal server error"))
	}
}
