package repository

import (
	"context"
	"errors"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/Zhenya20062/comranet-server/internal/models"
)

// UserDirectory reads display identity and push tokens from the users
// collection. Account management is owned by the auth service.
type UserDirectory struct {
	store docstore.Store
}

func NewUserDirectory(store docstore.Store) *UserDirectory {
	return &UserDirectory{store: store}
}

func userFromDoc(doc docstore.Doc) *models.User {
	return &models.User{
		ID:             doc.ID,
		Login:          doc.String("login"),
		Username:       doc.String("username"),
		PhotoURL:       doc.String("photo_url"),
		NotificationID: doc.String("notification_id"),
	}
}

func (r *UserDirectory) ResolveByID(ctx context.Context, id string) (*models.MessageUser, error) {
	doc, err := r.store.Get(ctx, docstore.CollectionUsers, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Unavailable("fetch user", err)
	}
	return userFromDoc(doc).ToMessageUser(), nil
}

// ResolveMany resolves a set of user ids with a single in-query, bounding the
// read amplification of page decoration. Unknown ids are simply absent from
// the result.
func (r *UserDirectory) ResolveMany(ctx context.Context, ids []string) (map[string]*models.MessageUser, error) {
	if len(ids) == 0 {
		return map[string]*models.MessageUser{}, nil
	}

	docs, err := r.store.Query(ctx, docstore.CollectionUsers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(docstore.FieldDocID, docstore.OpIn, ids)},
	})
	if err != nil {
		return nil, apperr.Unavailable("query users", err)
	}

	users := make(map[string]*models.MessageUser, len(docs))
	for _, doc := range docs {
		users[doc.ID] = userFromDoc(doc).ToMessageUser()
	}
	return users, nil
}

// PushTokens returns the registered push tokens for the given user ids. Users
// without a registered device are omitted, not an error.
func (r *UserDirectory) PushTokens(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	docs, err := r.store.Query(ctx, docstore.CollectionUsers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where(docstore.FieldDocID, docstore.OpIn, userIDs)},
	})
	if err != nil {
		return nil, apperr.Unavailable("query push tokens", err)
	}

	tokens := make(map[string]string)
	for _, doc := range docs {
		if user := userFromDoc(doc); user.NotificationID != "" {
			tokens[user.ID] = user.NotificationID
		}
	}
	return tokens, nil
}

// UpdatePushToken registers the push token for the user identified by login.
func (r *UserDirectory) UpdatePushToken(ctx context.Context, login, token string) error {
	docs, err := r.store.Query(ctx, docstore.CollectionUsers, docstore.Query{
		Filters: []docstore.Filter{docstore.Where("login", docstore.OpEq, login)},
		Limit:   1,
	})
	if err != nil {
		return apperr.Unavailable("query user by login", err)
	}
	if len(docs) == 0 {
		return apperr.NotFound("user %s not found", login)
	}

	err = r.store.Update(ctx, docstore.CollectionUsers, docs[0].ID, docstore.Fields{
		"notification_id": token,
	})
	if err != nil {
		return apperr.Unavailable("update push token", err)
	}
	return nil
}
