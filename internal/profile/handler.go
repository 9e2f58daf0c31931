package profile

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/identity"
)

// Handler exposes the profile store over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a profile HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type writeResponse struct {
	Status    string `json:"status"`
	ProfileID string `json:"profile_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

type getResponse struct {
	Status  string  `json:"status"`
	Profile Profile `json:"profile"`
}

func owner(c *fiber.Ctx) string {
	id, _ := c.Locals(identity.LocalIdentityID).(string)
	return id
}

// Add handles POST /add_profile.
func (h *Handler) Add(c *fiber.Ctx) error {
	var p Profile
	if err := c.BodyParser(&p); err != nil {
		return apperr.Validation("malformed request body", nil)
	}
	stored, created, err := h.service.Create(c.UserContext(), owner(c), p)
	if err != nil {
		return err
	}
	if !created {
		return c.Status(http.StatusOK).JSON(writeResponse{Status: "conflict", ProfileID: stored.ProfileID, Message: "profile already exists"})
	}
	return c.Status(http.StatusCreated).JSON(writeResponse{Status: "success", ProfileID: stored.ProfileID, Message: "profile created"})
}

// Get handles GET /get_profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	id := c.Query("profile_id")
	if id == "" {
		return apperr.Validation("profile_id is required", map[string]string{"profile_id": "cannot be blank"})
	}
	p, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(getResponse{Status: "success", Profile: p})
}

// Update handles POST /update_profile.
func (h *Handler) Update(c *fiber.Ctx) error {
	var p Profile
	if err := c.BodyParser(&p); err != nil {
		return apperr.Validation("malformed request body", nil)
	}
	if _, err := h.service.Update(c.UserContext(), owner(c), p); err != nil {
		return err
	}
	return c.JSON(writeResponse{Status: "success", ProfileID: p.ProfileID, Message: "profile updated"})
}

// Delete handles DELETE /delete_profile.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id := c.Query("profile_id")
	if err := h.service.Delete(c.UserContext(), owner(c), id); err != nil {
		return err
	}
	return c.JSON(writeResponse{Status: "success", ProfileID: id, Message: "profile deleted"})
}

// Search handles POST /search_profiles. The response is a bare ranked array.
func (h *Handler) Search(c *fiber.Ctx) error {
	var q SearchQuery
	if err := c.BodyParser(&q); err != nil {
		return apperr.Validation("malformed request body", nil)
	}
	results, err := h.service.Search(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(results)
}
