package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/campusgig/campusgig-backend/internal/apperr"
)

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, apperr.Unauthorized("unauthorized")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.Nil, apperr.Unauthorized("unauthorized")
		}
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("invalid userId type: %T", v)
	}
}

// uuidParam parses a route parameter, answering ValidationError when malformed.
func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + name)
	}
	return id, nil
}

// authAndParam returns the caller together with a parsed route parameter.
func authAndParam(c *fiber.Ctx, name string) (uuid.UUID, uuid.UUID, error) {
	uid, err := getUserUUID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuidParam(c, name)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return uid, id, nil
}
