package service

import (
	"context"
	"log"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/Zhenya20062/comranet-server/internal/validation"
)

const (
	DefaultHistoryLimit = 10
	MaxHistoryLimit     = 100

	postAppendTimeout = 15 * time.Second
)

// Notifier dispatches push notifications for a freshly stored message.
// excludeToken marks the sender's own device as already live.
type Notifier interface {
	Dispatch(ctx context.Context, message *models.Message, excludeToken string) error
}

type MessageService struct {
	messages  repository.MessageRepositoryInterface
	chats     repository.ChatRepositoryInterface
	directory repository.UserDirectoryInterface
	notifier  Notifier
}

func NewMessageService(
	messages repository.MessageRepositoryInterface,
	chats repository.ChatRepositoryInterface,
	directory repository.UserDirectoryInterface,
	notifier Notifier,
) *MessageService {
	return &MessageService{
		messages:  messages,
		chats:     chats,
		directory: directory,
		notifier:  notifier,
	}
}

type AppendMessageInput struct {
	ChatID       string
	SenderID     string
	Content      string
	Type         models.MessageType
	ExcludeToken string // caller-supplied push token already receiving live updates
}

// Append persists a message and returns it decorated with the resolved sender
// identity. The summary-pointer update and the push fan-out are scheduled
// before Append returns but run off the request path; their failures degrade
// freshness or delivery, never the append itself.
func (s *MessageService) Append(ctx context.Context, input AppendMessageInput) (*models.Message, error) {
	if !validation.ValidateID(input.ChatID) {
		return nil, apperr.Validation("chat_id is required")
	}
	if !validation.ValidateID(input.SenderID) {
		return nil, apperr.Validation("user_id is required")
	}
	input.Content = validation.TrimAndLimit(input.Content, validation.MaxMessageLength())
	if input.Content == "" {
		return nil, apperr.Validation("content is required")
	}
	if input.Type == "" {
		input.Type = models.TextMessage
	}
	if !validation.ValidateMessageType(string(input.Type)) {
		return nil, apperr.Validation("invalid message type %q", input.Type)
	}

	if _, err := s.chats.FindByID(ctx, input.ChatID); err != nil {
		return nil, err
	}
	sender, err := s.directory.ResolveByID(ctx, input.SenderID)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ChatID:   input.ChatID,
		SenderID: input.SenderID,
		Content:  input.Content,
		Type:     input.Type,
		Sender:   sender,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	go s.runPostAppend(message, input.ExcludeToken)

	return message, nil
}

func (s *MessageService) runPostAppend(message *models.Message, excludeToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), postAppendTimeout)
	defer cancel()
	s.postAppend(ctx, message, excludeToken)
}

// postAppend updates the chat's last-message pointer, then fans out pushes. A
// failed pointer update must not suppress the notification: the message is
// already durable and the next successful append heals the summary.
func (s *MessageService) postAppend(ctx context.Context, message *models.Message, excludeToken string) {
	if err := s.chats.UpdateLastMessage(ctx, message.ChatID, message.ID); err != nil {
		log.Printf("Failed to update last message for chat %s: %v", message.ChatID, err)
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, message, excludeToken); err != nil {
		log.Printf("Push dispatch failed for message %s: %v", message.ID, err)
	}
}

// History returns a page of chat history, newest first. The before cursor is
// exclusive; a page shorter than limit signals the end of history.
func (s *MessageService) History(ctx context.Context, chatID string, before *time.Time, limit int) ([]models.Message, error) {
	if !validation.ValidateID(chatID) {
		return nil, apperr.Validation("chat_id is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	if _, err := s.chats.FindByID(ctx, chatID); err != nil {
		return nil, err
	}

	messages, err := s.messages.FindByChat(ctx, chatID, before, limit)
	if err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// decorate resolves sender identities with one directory query per page.
func (s *MessageService) decorate(ctx context.Context, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(messages))
	ids := make([]string, 0, len(messages))
	for i := range messages {
		if !seen[messages[i].SenderID] {
			seen[messages[i].SenderID] = true
			ids = append(ids, messages[i].SenderID)
		}
	}

	users, err := s.directory.ResolveMany(ctx, ids)
	if err != nil {
		return err
	}

	for i := range messages {
		if user, ok := users[messages[i].SenderID]; ok {
			messages[i].Sender = user
			continue
		}
		// Sender vanished from the directory; keep the message readable.
		log.Printf("Sender %s of message %s not in directory", messages[i].SenderID, messages[i].ID)
		messages[i].Sender = &models.MessageUser{ID: messages[i].SenderID}
	}
	return nil
}
