package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/identity"
)

// Audit logs one structured line per request once the handler chain returns.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			status = fe.Code
		case err != nil:
			status = apperr.HTTPStatus(apperr.KindOf(err))
		}
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if id := RequestIDFrom(c); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if owner, ok := c.Locals(identity.LocalIdentityID).(string); ok {
			attrs = append(attrs, slog.String("identity_id", owner))
		}

		switch {
		case err == nil:
			logger.Info("request completed", attrs...)
		case status >= 500:
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request failed", attrs...)
		default:
			attrs = append(attrs, slog.String("code", string(apperr.KindOf(err))))
			logger.Warn("request rejected", attrs...)
		}
		return err
	}
}
