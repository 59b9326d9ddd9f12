package httpx

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/CryptoCapi/Mexora-sub001/internal/chatsync"
	"github.com/CryptoCapi/Mexora-sub001/internal/models"
	"github.com/CryptoCapi/Mexora-sub001/internal/roster"
	"github.com/CryptoCapi/Mexora-sub001/internal/store"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(c *fiber.Ctx) string {
	if v := c.Locals("requestid"); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func Error(c *fiber.Ctx, status int, code string, message string) error {
	if message == "" {
		message = "Request failed"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusBadRequest, code, message)
}

func Unauthorized(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusUnauthorized, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

// DomainError maps a domain failure onto its HTTP status. Use it for errors
// coming out of the repositories and synchronizers.
func DomainError(c *fiber.Ctx, code string, err error) error {
	switch {
	case errors.Is(err, models.ErrValidation):
		return BadRequest(c, code, err.Error())
	case errors.Is(err, models.ErrPermissionDenied):
		return Forbidden(c, code, err.Error())
	case errors.Is(err, store.ErrNotFound):
		return NotFound(c, code, "Not found")
	case errors.Is(err, chatsync.ErrClosed):
		return Error(c, fiber.StatusConflict, code, "Chat view closed")
	case errors.Is(err, roster.ErrClosed):
		return Error(c, fiber.StatusConflict, code, "Roster view closed")
	case errors.Is(err, chatsync.ErrSendFailed):
		return Error(c, fiber.StatusBadGateway, code, "Message did not commit; retry")
	default:
		return Internal(c, code)
	}
}

// LocalString pulls a string value set by middleware out of the request
// context.
func LocalString(c *fiber.Ctx, key string) (string, error) {
	v := c.Locals(key)
	if v == nil {
		return "", fmt.Errorf("missing local %s", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("invalid local %s", key)
	}
	return s, nil
}
