package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/repository"
)

// notificationName is the sender name shown by the push provider.
const notificationName = "Comranet"

// PushSender is the external push transport boundary.
type PushSender interface {
	Send(ctx context.Context, playerIDs []string, contents map[string]string, name string) error
}

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	IsOnline(userID string) bool
}

// NotificationService computes the fan-out target set for a stored message
// and dispatches one batched push: chat members minus the sender, minus
// connected clients, minus users without a registered device.
type NotificationService struct {
	chats     repository.ChatRepositoryInterface
	directory repository.UserDirectoryInterface
	presence  Presence
	sender    PushSender
}

func NewNotificationService(
	chats repository.ChatRepositoryInterface,
	directory repository.UserDirectoryInterface,
	presence Presence,
	sender PushSender,
) *NotificationService {
	return &NotificationService{
		chats:     chats,
		directory: directory,
		presence:  presence,
		sender:    sender,
	}
}

// Dispatch implements Notifier. Failures are returned for the caller to log;
// they are never surfaced to the client that appended the message.
func (s *NotificationService) Dispatch(ctx context.Context, message *models.Message, excludeToken string) error {
	if s.sender == nil {
		log.Printf("Push transport not configured, skipping dispatch for message %s", message.ID)
		return nil
	}

	memberIDs, err := s.chats.MemberIDs(ctx, message.ChatID)
	if err != nil {
		return err
	}

	targets := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id == message.SenderID {
			continue
		}
		if s.presence != nil && s.presence.IsOnline(id) {
			// Already receiving live updates over a socket.
			continue
		}
		targets = append(targets, id)
	}
	if len(targets) == 0 {
		return nil
	}

	tokenByUser, err := s.directory.PushTokens(ctx, targets)
	if err != nil {
		return err
	}

	tokens := make([]string, 0, len(tokenByUser))
	for _, token := range tokenByUser {
		if token == excludeToken {
			continue
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return nil
	}

	body, err := json.Marshal(message.ToResponse())
	if err != nil {
		return err
	}
	contents := map[string]string{
		"en": string(body),
		"ru": string(body),
	}

	return s.sender.Send(ctx, tokens, contents, notificationName)
}
