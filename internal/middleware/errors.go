package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
)

type errorBody struct {
	Status  string            `json:"status"`
	Code    apperr.Kind       `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders every returned error as the JSON error envelope.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	logger = logging.OrDiscard(logger)
	return func(c *fiber.Ctx, err error) error {
		body := errorBody{Status: "error", Message: err.Error()}
		var status int

		var fe *fiber.Error
		var ae *apperr.Error
		switch {
		case errors.As(err, &ae):
			body.Code = ae.Kind
			body.Message = ae.Message
			body.Fields = ae.Fields
			status = apperr.HTTPStatus(ae.Kind)
		case errors.As(err, &fe):
			status = fe.Code
			body.Code = apperr.KindFromStatus(fe.Code, apperr.KindInternal)
			body.Message = fe.Message
		default:
			status = fiber.StatusInternalServerError
			body.Code = apperr.KindInternal
			body.Message = "internal error"
		}
		if body.Code == apperr.KindNotFound {
			body.Status = "not_found"
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.String("request_id", RequestIDFrom(c)), slog.Any("error", err))
		}
		return c.Status(status).JSON(body)
	}
}
