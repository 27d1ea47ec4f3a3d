package repository

import (
	"context"
	"errors"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/Zhenya20062/comranet-server/internal/models"
)

type ChatRepository struct {
	store docstore.Store
}

func NewChatRepository(store docstore.Store) *ChatRepository {
	return &ChatRepository{store: store}
}

// Create stores the chat-info document and one membership record per member.
func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat, memberIDs []string) (string, error) {
	fields := docstore.Fields{
		"chat_name": chat.Title,
		"owner_id":  chat.OwnerID,
	}
	if chat.PhotoURL != "" {
		fields["photo_url"] = chat.PhotoURL
	}

	id, err := r.store.Add(ctx, docstore.CollectionChats, fields)
	if err != nil {
		return "", apperr.Unavailable("store chat", err)
	}

	for _, userID := range memberIDs {
		_, err := r.store.Add(ctx, docstore.CollectionMembers, docstore.Fields{
			"user_id": userID,
			"chat_id": id,
		})
		if err != nil {
			return "", apperr.Unavailable("store membership", err)
		}
	}

	chat.ID = id
	return id, nil
}

func (r *ChatRepository) FindByID(ctx context.Context, id string) (*models.Chat, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionChats, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("chat %s not found", id)
	}
	if err != nil {
		return nil, apperr.Unavailable("fetch chat", err)
	}
	return &models.Chat{
		ID:            doc.ID,
		Title:         doc.String("chat_name"),
		PhotoURL:      doc.String("photo_url"),
		OwnerID:       doc.String("owner_id"),
		LastMessageID: doc.String("last_message_id"),
	}, nil
}

// AvailableChatIDs returns the ids of every chat the user is a member of.
func (r *ChatRepository) AvailableChatIDs(ctx context.Context, userID string) ([]string, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionMembers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("user_id", docstore.OpEq, userID)},
	})
	if err != nil {
		return nil, apperr.Unavailable("query memberships", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if chatID := doc.String("chat_id"); chatID != "" {
			ids = append(ids, chatID)
		}
	}
	return ids, nil
}

func (r *ChatRepository) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	docs, err := r.store.Query(ctx, docstore.CollectionMembers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("chat_id", docstore.OpEq, chatID)},
	})
	if err != nil {
		return nil, apperr.Unavailable("query members", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if userID := doc.String("user_id"); userID != "" {
			ids = append(ids, userID)
		}
	}
	return ids, nil
}

// RemoveMember deletes the (user, chat) membership edge.
func (r *ChatRepository) RemoveMember(ctx context.Context, chatID, userID string) error {
	docs, err := r.store.Query(ctx, docstore.CollectionMembers, docstore.Query{
		Filters: []docstore.Filter{
			docstore.Where("chat_id", docstore.OpEq, chatID),
			docstore.Where("user_id", docstore.OpEq, userID),
		},
	})
	if err != nil {
		return apperr.Unavailable("query membership", err)
	}
	if len(docs) == 0 {
		return apperr.NotFound("user %s is not a member of chat %s", userID, chatID)
	}

	for _, doc := range docs {
		if err := r.store.Delete(ctx, docstore.CollectionMembers, doc.ID); err != nil &&
			!errors.Is(err, docstore.ErrNotFound) {
			return apperr.Unavailable("delete membership", err)
		}
	}
	return nil
}

// UpdateLastMessage overwrites the chat's last-message pointer. Last writer
// wins: under concurrent appends the store's own write ordering decides which
// message the summary ends up pointing at, and that is accepted as a
// best-effort "most recent" indicator rather than a strict guarantee.
func (r *ChatRepository) UpdateLastMessage(ctx context.Context, chatID, messageID string) error {
	err := r.store.Update(ctx, docstore.CollectionChats, chatID, docstore.Fields{
		"last_message_id": messageID,
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return apperr.NotFound("chat %s not found", chatID)
	}
	if err != nil {
		return apperr.Unavailable("update last message", err)
	}
	return nil
}

// WatchMemberships is stage one of the chat-list reactor: any membership
// change for the user produces a signal.
func (r *ChatRepository) WatchMemberships(ctx context.Context, userID string) (docstore.Subscription, error) {
	sub, err := r.store.Watch(ctx, docstore.CollectionMembers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("user_id", docstore.OpEq, userID)},
	})
	if err != nil {
		return nil, apperr.Unavailable("watch memberships", err)
	}
	return sub, nil
}

// WatchChats is stage two: any change to a chat-info document in the id set
// produces a signal.
func (r *ChatRepository) WatchChats(ctx context.Context, chatIDs []string) (docstore.Subscription, error) {
	sub, err := r.store.Watch(ctx, docstore.CollectionChats, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(docstore.FieldDocID, docstore.OpIn, chatIDs)},
	})
	if err != nil {
		return nil, apperr.Unavailable("watch chats", err)
	}
	return sub, nil
}
