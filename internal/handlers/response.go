// Package handlers implements the HTTP surface spec.md section 6
// describes at design level: the teacher's fiber.Ctx-based handler
// pattern (internal/handlers/api_keys.go), adapted so that success
// responses remain JSON but error responses are plain text carrying
// the status the error taxonomy maps to (spec.md section 7).
package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"ctcustody/internal/apperr"
	"ctcustody/internal/middleware"
)

// ErrorHandler is installed as the fiber.Config ErrorHandler for the
// whole app. Every handler in this package returns errors by value
// (an *apperr.Error, a *fiber.Error from auth middleware, or a bare
// error for anything unexpected) and lets this single place translate
// them into the plain-text response spec.md section 6 requires. Every
// path also logs the failing request's id (internal/middleware's
// RequestID, the same correlation id payment_router.go logs alongside
// its own request failures), since the plain-text body itself carries
// no detail beyond the status the error taxonomy maps to.
func ErrorHandler(c fiber.Ctx, err error) error {
	requestID := middleware.GetRequestID(c)

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		slog.Warn("request failed", "request_id", requestID, "path", c.Path(), "kind", appErr.Kind, "error", err)
		return c.Status(apperr.StatusCode(appErr.Kind)).SendString(appErr.Error())
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		slog.Warn("request failed", "request_id", requestID, "path", c.Path(), "status", fiberErr.Code, "error", err)
		return c.Status(fiberErr.Code).SendString(fiberErr.Message)
	}

	slog.Error("unhandled request error", "request_id", requestID, "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
}
