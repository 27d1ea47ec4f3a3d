package repository

import (
	"context"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/Zhenya20062/comranet-server/internal/models"
)

// UserDirectoryInterface resolves participant ids to display identity and
// push tokens. It is a read-only projection over the users collection, except
// for push-token registration.
type UserDirectoryInterface interface {
	ResolveByID(ctx context.Context, id string) (*models.MessageUser, error)
	ResolveMany(ctx context.Context, ids []string) (map[string]*models.MessageUser, error)
	PushTokens(ctx context.Context, userIDs []string) (map[string]string, error)
	UpdatePushToken(ctx context.Context, login, token string) error
}

// MessageRepositoryInterface defines the contract for message persistence.
type MessageRepositoryInterface interface {
	Create(ctx context.Context, message *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	FindByChat(ctx context.Context, chatID string, before *time.Time, limit int) ([]models.Message, error)
}

// ChatRepositoryInterface defines the contract for chat and membership
// operations, including the live watches the chat-list reactor depends on.
type ChatRepositoryInterface interface {
	Create(ctx context.Context, chat *models.Chat, memberIDs []string) (string, error)
	FindByID(ctx context.Context, id string) (*models.Chat, error)
	AvailableChatIDs(ctx context.Context, userID string) ([]string, error)
	MemberIDs(ctx context.Context, chatID string) ([]string, error)
	RemoveMember(ctx context.Context, chatID, userID string) error
	UpdateLastMessage(ctx context.Context, chatID, messageID string) error
	WatchMemberships(ctx context.Context, userID string) (docstore.Subscription, error)
	WatchChats(ctx context.Context, chatIDs []string) (docstore.Subscription, error)
}
