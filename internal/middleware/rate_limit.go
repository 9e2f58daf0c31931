package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/ratelimit"
)

// RateLimit throttles requests per client IP. Limiter failures let the
// request through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, err := limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable", slog.String("path", c.Path()), slog.Any("error", err))
			return c.Next()
		}
		if !allowed {
			return apperr.New(apperr.KindRateLimited, "too many requests, try again later")
		}
		return c.Next()
	}
}
