package httpHandler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"session-service/domain"
)

// statusFor maps domain sentinels onto HTTP status codes for the room
// REST surface.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrDuplicatePlayer),
		errors.Is(err, domain.ErrColorTaken),
		errors.Is(err, domain.ErrCannotRemoveHost),
		errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
