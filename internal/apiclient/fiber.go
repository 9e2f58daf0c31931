package apiclient

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// FiberDoer routes requests straight into a fiber app without a listener.
type FiberDoer struct {
	App *fiber.App
}

// Do implements Doer with app.Test and no timeout.
func (d FiberDoer) Do(req *http.Request) (*http.Response, error) {
	return d.App.Test(req, -1)
}
