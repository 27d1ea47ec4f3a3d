package testutil

import (
	"context"
	"testing"

	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/Zhenya20062/comranet-server/internal/docstore/memstore"
)

// TestHelper seeds an in-memory document store with fixture data
type TestHelper struct {
	t     *testing.T
	Store *memstore.Memstore
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t, Store: memstore.New()}
}

// SeedUser creates a user document and returns its id
func (h *TestHelper) SeedUser(login, username, photoURL string) string {
	h.t.Helper()
	if login == "" {
		login = "testlogin"
	}
	if username == "" {
		username = "testuser"
	}

	fields := docstore.Fields{
		"login":    login,
		"username": username,
	}
	if photoURL != "" {
		fields["photo_url"] = photoURL
	}

	id, err := h.Store.Add(context.Background(), docstore.CollectionUsers, fields)
	if err != nil {
		h.t.Fatalf("seed user %s: %v", login, err)
	}
	return id
}

// SeedUserWithToken creates a user with a registered push token
func (h *TestHelper) SeedUserWithToken(login, username, token string) string {
	h.t.Helper()
	id := h.SeedUser(login, username, "")
	err := h.Store.Update(context.Background(), docstore.CollectionUsers, id, docstore.Fields{
		"notification_id": token,
	})
	if err != nil {
		h.t.Fatalf("seed push token for %s: %v", login, err)
	}
	return id
}

// SeedChat creates a chat document plus one membership per member id
func (h *TestHelper) SeedChat(title, ownerID string, memberIDs ...string) string {
	h.t.Helper()
	if title == "" {
		title = "Test Chat"
	}

	chatID, err := h.Store.Add(context.Background(), docstore.CollectionChats, docstore.Fields{
		"chat_name": title,
		"owner_id":  ownerID,
	})
	if err != nil {
		h.t.Fatalf("seed chat %s: %v", title, err)
	}
	for _, userID := range memberIDs {
		h.SeedMembership(chatID, userID)
	}
	return chatID
}

// SeedMembership adds one (user, chat) membership edge
func (h *TestHelper) SeedMembership(chatID, userID string) string {
	h.t.Helper()
	id, err := h.Store.Add(context.Background(), docstore.CollectionMembers, docstore.Fields{
		"user_id": userID,
		"chat_id": chatID,
	})
	if err != nil {
		h.t.Fatalf("seed membership %s/%s: %v", chatID, userID, err)
	}
	return id
}

// SeedMessage stores one message with a store-assigned timestamp and returns
// its id. Messages seeded in sequence get strictly increasing timestamps.
func (h *TestHelper) SeedMessage(chatID, senderID, content string) string {
	h.t.Helper()
	if content == "" {
		content = "Test message"
	}

	id, err := h.Store.Add(context.Background(), docstore.CollectionMessages, docstore.Fields{
		"data":      content,
		"chat_id":   chatID,
		"sender_id": senderID,
		"type":      "text",
		"timestamp": docstore.ServerTimestamp,
	})
	if err != nil {
		h.t.Fatalf("seed message in chat %s: %v", chatID, err)
	}
	return id
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	h.t.Helper()
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// AssertEqual checks if two values are equal
func (h *TestHelper) AssertEqual(got, want interface{}, testName string) {
	h.t.Helper()
	if got != want {
		h.t.Errorf("%s: got %v, want %v", testName, got, want)
	}
}
