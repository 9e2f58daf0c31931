package identity

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/notification"
)

// Locals keys set by the session middleware.
const (
	LocalSession    = "session"
	LocalIdentityID = "identity_id"
)

// Handler exposes the provider over HTTP.
type Handler struct {
	provider *Provider
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(provider *Provider) *Handler {
	return &Handler{provider: provider}
}

type sessionBody struct {
	Status  string  `json:"status"`
	Session Session `json:"session"`
}

// SendCode handles POST /auth/otp.
func (h *Handler) SendCode(c *fiber.Ctx) error {
	var req sendCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("malformed request body", nil)
	}
	channel, err := notification.ParseChannel(req.Channel)
	if err != nil {
		return apperr.Validation(err.Error(), map[string]string{"channel": "must be sms or whatsapp"})
	}
	if err := h.provider.SendCode(c.UserContext(), req.Phone, channel); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "success"})
}

// VerifyCode handles POST /auth/verify.
func (h *Handler) VerifyCode(c *fiber.Ctx) error {
	var req verifyCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("malformed request body", nil)
	}
	if req.Code == "" {
		return apperr.Validation("code is required", map[string]string{"code": "cannot be blank"})
	}
	sess, err := h.provider.VerifyCode(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(sessionBody{Status: "success", Session: sess})
}

// Session handles GET /auth/session.
func (h *Handler) Session(c *fiber.Ctx) error {
	sess, ok := c.Locals(LocalSession).(Session)
	if !ok {
		return apperr.ErrUnauthorized
	}
	return c.JSON(sessionBody{Status: "success", Session: sess})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	sess, ok := c.Locals(LocalSession).(Session)
	if !ok {
		return apperr.ErrUnauthorized
	}
	next, err := h.provider.Refresh(c.UserContext(), sess.AccessToken)
	if err != nil {
		return err
	}
	return c.JSON(sessionBody{Status: "success", Session: next})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	sess, ok := c.Locals(LocalSession).(Session)
	if !ok {
		return apperr.ErrUnauthorized
	}
	if err := h.provider.Revoke(c.UserContext(), sess.AccessToken); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success"})
}
