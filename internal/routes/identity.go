package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/identity"
)

// RegisterIdentityRoutes wires the passcode exchange and session endpoints.
// limit guards the unauthenticated ones.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, authn, limit fiber.Handler) {
	auth := r.Group("/auth")
	auth.Post("/otp", limit, h.SendCode)
	auth.Post("/verify", limit, h.VerifyCode)
	auth.Get("/session", authn, h.Session)
	auth.Post("/refresh", authn, h.Refresh)
	auth.Post("/logout", authn, h.Logout)
}
