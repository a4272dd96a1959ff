// Package apperr holds the error kinds shared by the bidding, lifecycle and chat services.
// Services return *Error values; handlers map them to HTTP statuses with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrAlreadyAccepted     = errors.New("already accepted")
	ErrNoPendingPayment    = errors.New("no pending payment")
	ErrNotificationFailure = errors.New("notification failure")
)

// Error pairs a kind with a message meant for the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

func New(kind error, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Validation(msg string) error       { return New(ErrValidation, msg) }
func Unauthorized(msg string) error     { return New(ErrUnauthorized, msg) }
func Forbidden(msg string) error        { return New(ErrForbidden, msg) }
func NotFound(msg string) error         { return New(ErrNotFound, msg) }
func InvalidState(msg string) error     { return New(ErrInvalidState, msg) }
func CapacityExceeded(msg string) error { return New(ErrCapacityExceeded, msg) }
func AlreadyAccepted(msg string) error  { return New(ErrAlreadyAccepted, msg) }
func NoPendingPayment(msg string) error { return New(ErrNoPendingPayment, msg) }

// HTTPStatus maps an error to the status code the REST layer answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrAlreadyAccepted),
		errors.Is(err, ErrNoPendingPayment):
		return fiber.StatusConflict
	case errors.Is(err, ErrNotificationFailure):
		return fiber.StatusBadGateway
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// Code is a stable machine-readable name for the error kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, ErrAlreadyAccepted):
		return "ALREADY_ACCEPTED"
	case errors.Is(err, ErrNoPendingPayment):
		return "NO_PENDING_PAYMENT"
	case errors.Is(err, ErrNotificationFailure):
		return "NOTIFICATION_FAILURE"
	}
	return "INTERNAL"
}

// Public reports whether the error message can be shown to the caller as-is.
func Public(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// FromStore turns gorm.ErrRecordNotFound into a NotFound error naming what, and
// wraps any other storage error.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(what + " not found")
	}
	return fmt.Errorf("load %s: %w", what, err)
}
