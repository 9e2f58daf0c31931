package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/profile"
)

// RegisterProfileRoutes wires the profile store. Reads and search are public;
// writes run behind the given middleware.
func RegisterProfileRoutes(r fiber.Router, h *profile.Handler, writes ...fiber.Handler) {
	r.Get("/get_profile", h.Get)
	r.Post("/search_profiles", h.Search)

	r.Post("/add_profile", chain(writes, h.Add)...)
	r.Post("/update_profile", chain(writes, h.Update)...)
	r.Delete("/delete_profile", chain(writes, h.Delete)...)
}
