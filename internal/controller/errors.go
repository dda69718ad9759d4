package controller

import (
	"errors"

	"helmet-compliance-be/internal/pkg/serverutils"
	"helmet-compliance-be/internal/service"
	"helmet-compliance-be/pkg/form"
	"helmet-compliance-be/pkg/media"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps domain failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, form.ErrUnknownField),
		errors.Is(err, form.ErrRequiredField),
		errors.Is(err, form.ErrInvalidFormat),
		errors.Is(err, form.ErrMismatch),
		errors.Is(err, media.ErrNoSelection),
		errors.Is(err, media.ErrWrongSource),
		errors.Is(err, service.ErrInvalidVariant),
		errors.Is(err, service.ErrInvalidKind),
		errors.Is(err, service.ErrInvalidPrefillSource):
		return fiber.StatusBadRequest
	case errors.Is(err, media.ErrUnsupportedMediaType):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, media.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, media.ErrDeviceUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, form.ErrSubmitInProgress),
		errors.Is(err, form.ErrClosed),
		errors.Is(err, media.ErrSourceBusy),
		errors.Is(err, media.ErrNotAcquired),
		errors.Is(err, media.ErrDetectionInProgress),
		errors.Is(err, media.ErrSessionClosed),
		errors.Is(err, media.ErrAborted),
		errors.Is(err, service.ErrNoNavigation):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// failure wraps err for ErrorHandlerMiddleware, attaching the session state when known.
func failure(err error, state any) error {
	httpErr := serverutils.NewHTTPError(statusFor(err), err)
	httpErr.Data = state
	return httpErr
}
