package service

import (
	"context"
	"log"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/Zhenya20062/comranet-server/internal/validation"
)

type ChatService struct {
	chats     repository.ChatRepositoryInterface
	messages  repository.MessageRepositoryInterface
	directory repository.UserDirectoryInterface
}

func NewChatService(
	chats repository.ChatRepositoryInterface,
	messages repository.MessageRepositoryInterface,
	directory repository.UserDirectoryInterface,
) *ChatService {
	return &ChatService{chats: chats, messages: messages, directory: directory}
}

type CreateChatInput struct {
	Title    string
	OwnerID  string
	Members  []string
	PhotoURL string // already-issued URL; upload itself is the media service's job
}

func (s *ChatService) Create(ctx context.Context, input CreateChatInput) (*models.Chat, error) {
	input.Title = validation.TrimAndLimit(input.Title, validation.MaxChatTitleLength())
	if !validation.ValidateChatTitle(input.Title) {
		return nil, apperr.Validation("title is required")
	}
	if !validation.ValidateID(input.OwnerID) {
		return nil, apperr.Validation("owner_id is required")
	}
	if len(input.Members) == 0 {
		return nil, apperr.Validation("user_id_list must not be empty")
	}
	for _, id := range input.Members {
		if !validation.ValidateID(id) {
			return nil, apperr.Validation("user_id_list contains an empty id")
		}
	}

	chat := &models.Chat{
		Title:    input.Title,
		OwnerID:  input.OwnerID,
		PhotoURL: input.PhotoURL,
	}
	if _, err := s.chats.Create(ctx, chat, input.Members); err != nil {
		return nil, err
	}
	return chat, nil
}

// Leave removes the user's membership; the reactor picks the change up
// through its stage-one watch.
func (s *ChatService) Leave(ctx context.Context, chatID, userID string) error {
	if !validation.ValidateID(chatID) || !validation.ValidateID(userID) {
		return apperr.Validation("chat_id and user_id are required")
	}
	return s.chats.RemoveMember(ctx, chatID, userID)
}

// Summary materializes one chat-list entry: display fields plus the fully
// decorated last message when the chat has one.
func (s *ChatService) Summary(ctx context.Context, chatID string) (*models.ChatSummary, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	summary := &models.ChatSummary{
		ChatID:   chat.ID,
		Title:    chat.Title,
		PhotoURL: chat.PhotoURL,
	}
	if chat.LastMessageID == "" {
		return summary, nil
	}

	last, err := s.messages.FindByID(ctx, chat.LastMessageID)
	if err != nil {
		return nil, err
	}
	sender, err := s.directory.ResolveByID(ctx, last.SenderID)
	if err != nil {
		return nil, err
	}
	last.Sender = sender

	resp := last.ToResponse()
	summary.LastMessage = &resp
	return summary, nil
}

// ListForUser materializes the full chat list for a user. A chat that fails
// to materialize is skipped rather than failing the whole list.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]models.ChatSummary, error) {
	if !validation.ValidateID(userID) {
		return nil, apperr.Validation("user_id is required")
	}

	ids, err := s.chats.AvailableChatIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	list := make([]models.ChatSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := s.Summary(ctx, id)
		if err != nil {
			log.Printf("Skipping chat %s for user %s: %v", id, userID, err)
			continue
		}
		list = append(list, *summary)
	}
	return list, nil
}
