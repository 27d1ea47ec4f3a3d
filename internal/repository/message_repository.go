package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/Zhenya20062/comranet-server/internal/models"
)

type MessageRepository struct {
	store docstore.Store
}

func NewMessageRepository(store docstore.Store) *MessageRepository {
	return &MessageRepository{store: store}
}

// Create persists the message as a single document write. The store assigns
// the id and the timestamp; both are read back into the message before
// returning, so the caller sees exactly what was committed.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	fields := docstore.Fields{
		"data":      message.Content,
		"chat_id":   message.ChatID,
		"sender_id": message.SenderID,
		"type":      string(message.Type),
		"timestamp": docstore.ServerTimestamp,
	}

	id, err := r.store.Add(ctx, docstore.CollectionMessages, fields)
	if err != nil {
		return apperr.Unavailable("store message", err)
	}

	doc, err := r.store.Get(ctx, docstore.CollectionMessages, id)
	if err != nil {
		return apperr.Unavailable("read back message", err)
	}

	message.ID = id
	message.CreatedAt = doc.Time("timestamp")
	return nil
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionMessages, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("message %s not found", id)
	}
	if err != nil {
		return nil, apperr.Unavailable("fetch message", err)
	}
	m := messageFromDoc(doc)
	return &m, nil
}

// FindByChat returns messages for a chat ordered newest first. When before is
// set, only messages strictly older than it are eligible, so the boundary
// message never repeats across pages.
func (r *MessageRepository) FindByChat(ctx context.Context, chatID string, before *time.Time, limit int) ([]models.Message, error) {
	q := docstore.Query{
		Filters:    []docstore.Filter{docstore.Where("chat_id", docstore.OpEq, chatID)},
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      limit,
	}
	if before != nil {
		q.Filters = append(q.Filters, docstore.Where("timestamp", docstore.OpLt, *before))
	}

	docs, err := r.store.Query(ctx, docstore.CollectionMessages, q)
	if err != nil {
		return nil, apperr.Unavailable("query messages", err)
	}

	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, messageFromDoc(doc))
	}
	return messages, nil
}

func messageFromDoc(doc docstore.Doc) models.Message {
	return models.Message{
		ID:        doc.ID,
		ChatID:    doc.String("chat_id"),
		SenderID:  doc.String("sender_id"),
		Content:   doc.String("data"),
		Type:      models.MessageType(doc.String("type")),
		CreatedAt: doc.Time("timestamp"),
	}
}
