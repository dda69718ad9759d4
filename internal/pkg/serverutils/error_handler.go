package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders any error returned down the chain as the standard envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var httpErr *HTTPError
		var validationErr *ValidationError
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &httpErr):
			resp := ErrorResponse(httpErr.Code, httpErr.Message)
			resp.Data = httpErr.Data
			return ctx.Status(httpErr.Code).JSON(resp)
		case errors.As(err, &validationErr):
			resp := ErrorResponse(fiber.StatusBadRequest, validationErr.Error())
			resp.Data = validationErr
			return ctx.Status(fiber.StatusBadRequest).JSON(resp)
		case errors.As(err, &fiberErr):
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, err.Error()))
		}
	}
}
