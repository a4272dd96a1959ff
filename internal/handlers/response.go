package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/apperr"
)

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

// fail writes the error envelope. Messages of service errors are passed through;
// anything else is logged and reported as a generic server error.
func fail(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := apperr.HTTPStatus(err)
	msg := "internal server error"

	var fe *fiber.Error
	switch {
	case apperr.Public(err):
		msg = err.Error()
	case errors.As(err, &fe):
		msg = fe.Message
	default:
		if log != nil {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
		"code":    apperr.Code(err),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// ErrorHandler answers errors returned by middleware and unmatched routes with
// the same envelope the handlers use.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return fail(c, log, err)
	}
}
