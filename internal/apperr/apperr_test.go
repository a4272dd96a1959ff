package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, fiber.StatusOK},
		{apperr.Validation("bad"), fiber.StatusBadRequest},
		{apperr.Forbidden("no"), fiber.StatusForbidden},
		{apperr.NotFound("gone"), fiber.StatusNotFound},
		{apperr.InvalidState("late"), fiber.StatusConflict},
		{apperr.CapacityExceeded("full"), fiber.StatusConflict},
		{apperr.AlreadyAccepted("taken"), fiber.StatusConflict},
		{apperr.NoPendingPayment("none"), fiber.StatusConflict},
		{fiber.NewError(fiber.StatusTeapot, "tea"), fiber.StatusTeapot},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, apperr.HTTPStatus(c.err), "err=%v", c.err)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("placeBid: %w", apperr.CapacityExceeded("maximum bids reached"))

	assert.ErrorIs(t, err, apperr.ErrCapacityExceeded)
	assert.NotErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, "CAPACITY_EXCEEDED", apperr.Code(err))
	assert.True(t, apperr.Public(err))
	assert.False(t, apperr.Public(errors.New("db down")))
}

func TestErrorMessageFallsBackToKind(t *testing.T) {
	err := apperr.New(apperr.ErrNotFound, "")
	assert.Equal(t, "not found", err.Error())
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, apperr.FromStore(nil, "job"))

	err := apperr.FromStore(gorm.ErrRecordNotFound, "job")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "job not found", err.Error())

	err = apperr.FromStore(errors.New("conn reset"), "job")
	assert.Equal(t, fiber.StatusInternalServerError, apperr.HTTPStatus(err))
	assert.False(t, apperr.Public(err))
}
