package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/media"
)

// RegisterMediaRoutes accepts uploads behind writes and serves stored files
// from dir under /media.
func RegisterMediaRoutes(r fiber.Router, h *media.Handler, dir string, writes ...fiber.Handler) {
	r.Post("/media/:kind", chain(writes, h.Upload)...)
	r.Static("/media", dir, fiber.Static{
		Browse:        false,
		CacheDuration: 10 * time.Minute,
		MaxAge:        86400,
	})
}
