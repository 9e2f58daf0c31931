package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/identity"
)

// Authenticator resolves a bearer token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (identity.Session, error)
}

// SessionAuth requires a valid, unrevoked bearer token and exposes the
// session and identity id in Locals.
func SessionAuth(authn Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return apperr.New(apperr.KindUnauthorized, "missing bearer token")
		}
		sess, err := authn.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}
		c.Locals(identity.LocalSession, sess)
		c.Locals(identity.LocalIdentityID, sess.Identity.ID)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
