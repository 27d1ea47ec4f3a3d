package handlers

import (
	"strconv"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/httpx"
	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// SendMessageRequest is the explicit append schema; unknown or missing fields
// fail validation instead of leaking zero values into the core.
type SendMessageRequest struct {
	Content        string `json:"content"`
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	NotificationID string `json:"notification_id"`
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messageService.Append(c.Context(), service.AppendMessageInput{
		ChatID:       chatID,
		SenderID:     req.UserID,
		Content:      req.Content,
		Type:         models.MessageType(req.Type),
		ExcludeToken: req.NotificationID,
	})
	if err != nil {
		return httpx.FromError(c, err, "send_message_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")

	var before *time.Time
	if tsStr := c.Query("last_timestamp"); tsStr != "" {
		ms, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return httpx.BadRequest(c, "invalid_last_timestamp", "last_timestamp must be Unix milliseconds")
		}
		t := time.UnixMilli(ms).UTC()
		before = &t
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			return httpx.BadRequest(c, "invalid_limit", "limit must be a positive integer")
		}
		limit = l
	}

	messages, err := h.messageService.History(c.Context(), chatID, before, limit)
	if err != nil {
		return httpx.FromError(c, err, "fetch_messages_failed")
	}

	responses := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, messages[i].ToResponse())
	}
	return c.JSON(responses)
}
