package media

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler accepts photo uploads.
type Handler struct {
	store Store
}

// NewHandler constructs a media HTTP handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Upload handles POST /media/:kind with the raw image as the body.
func (h *Handler) Upload(c *fiber.Ctx) error {
	kind, err := ParseKind(c.Params("kind"))
	if err != nil {
		return err
	}
	data := append([]byte(nil), c.Body()...)
	url, err := h.store.Put(c.UserContext(), kind, data)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"status": "success", "url": url})
}
