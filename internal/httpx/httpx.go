package httpx

import (
	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/gofiber/fiber/v2"
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

func NotFound(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusNotFound, code, message)
}

func Forbidden(c *fiber.Ctx, code string, message string) error {
	return Error(c, fiber.StatusForbidden, code, message)
}

func Unavailable(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusServiceUnavailable, code, "Upstream unavailable")
}

func Internal(c *fiber.Ctx, code string) error {
	return Error(c, fiber.StatusInternalServerError, code, "Internal server error")
}

// FromError maps an error to its transport response by apperr kind.
func FromError(c *fiber.Ctx, err error, code string) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return NotFound(c, code, err.Error())
	case apperr.KindValidation:
		return BadRequest(c, code, err.Error())
	case apperr.KindUnavailable:
		return Unavailable(c, code)
	default:
		return Internal(c, code)
	}
}
