package handlers

import (
	"github.com/Zhenya20062/comranet-server/internal/httpx"
	"github.com/Zhenya20062/comranet-server/internal/service"
	"github.com/gofiber/fiber/v2"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type CreateChatRequest struct {
	Title      string   `json:"title"`
	OwnerID    string   `json:"owner_id"`
	UserIDList []string `json:"user_id_list"`
	PhotoURL   string   `json:"photo_url"`
}

func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	var req CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	chat, err := h.chatService.Create(c.Context(), service.CreateChatInput{
		Title:    req.Title,
		OwnerID:  req.OwnerID,
		Members:  req.UserIDList,
		PhotoURL: req.PhotoURL,
	})
	if err != nil {
		return httpx.FromError(c, err, "create_chat_failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"chat_id": chat.ID})
}

func (h *ChatHandler) GetChatList(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return httpx.BadRequest(c, "missing_user_id", "user_id is required")
	}

	list, err := h.chatService.ListForUser(c.Context(), userID)
	if err != nil {
		return httpx.FromError(c, err, "fetch_chat_list_failed")
	}
	return c.JSON(list)
}

type LeaveChatRequest struct {
	UserID string `json:"user_id"`
}

func (h *ChatHandler) LeaveChat(c *fiber.Ctx) error {
	chatID := c.Params("chat_id")

	var req LeaveChatRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.chatService.Leave(c.Context(), chatID, req.UserID); err != nil {
		return httpx.FromError(c, err, "leave_chat_failed")
	}
	return c.SendStatus(fiber.StatusOK)
}
