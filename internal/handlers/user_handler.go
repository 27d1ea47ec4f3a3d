package handlers

import (
	"github.com/Zhenya20062/comranet-server/internal/httpx"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	directory repository.UserDirectoryInterface
}

func NewUserHandler(directory repository.UserDirectoryInterface) *UserHandler {
	return &UserHandler{directory: directory}
}

// UpdateNotificationID registers the push token a client obtained from the
// push provider, keyed by login.
func (h *UserHandler) UpdateNotificationID(c *fiber.Ctx) error {
	login := c.Params("login")
	token := c.Params("notification_id")
	if login == "" || token == "" {
		return httpx.BadRequest(c, "missing_params", "login and notification_id are required")
	}

	if err := h.directory.UpdatePushToken(c.Context(), login, token); err != nil {
		return httpx.FromError(c, err, "update_notification_id_failed")
	}
	return c.SendStatus(fiber.StatusOK)
}
