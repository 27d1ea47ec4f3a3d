package handlers

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Zhenya20062/comranet-server/internal/cache"
	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/Zhenya20062/comranet-server/internal/service"
	"github.com/gofiber/websocket/v2"
)

type WebSocketHandler struct {
	chatRepo    repository.ChatRepositoryInterface
	chatService *service.ChatService
	presence    *cache.PresenceCache
}

func NewWebSocketHandler(
	chatRepo repository.ChatRepositoryInterface,
	chatService *service.ChatService,
	presence *cache.PresenceCache,
) *WebSocketHandler {
	return &WebSocketHandler{
		chatRepo:    chatRepo,
		chatService: chatService,
		presence:    presence,
	}
}

// HandleChatList serves one live chat-list connection. Each snapshot pushed to
// the socket is a complete JSON array of the user's chats; the client never
// has to merge deltas.
func (h *WebSocketHandler) HandleChatList(c *websocket.Conn) {
	userID := c.Params("user_id")
	if userID == "" {
		_ = c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user_id required"))
		c.Close()
		return
	}

	if err := h.presence.SetOnline(userID); err != nil {
		log.Printf("Failed to mark user %s online: %v", userID, err)
	}
	defer func() {
		if err := h.presence.SetOffline(userID); err != nil {
			log.Printf("Failed to mark user %s offline: %v", userID, err)
		}
	}()

	log.Printf("User %s connected for chat list updates", userID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Drain the socket so client closes and pings surface; any read error ends
	// the reactor through ctx. Inbound frames double as presence keep-alives.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
			if err := h.presence.Refresh(userID); err != nil {
				log.Printf("Failed to refresh presence for user %s: %v", userID, err)
			}
		}
	}()

	send := func(list []models.ChatSummary) error {
		payload, err := json.Marshal(list)
		if err != nil {
			return err
		}
		return c.WriteMessage(websocket.TextMessage, payload)
	}

	reactor := service.NewChatListReactor(h.chatRepo, h.chatService, userID, send)
	if err := reactor.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("Chat list stream for user %s ended: %v", userID, err)
	}

	log.Printf("User %s disconnected from chat list updates", userID)
}
