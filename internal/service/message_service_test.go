package service

import (
	"context"
	"testing"
	"time"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/Zhenya20062/comranet-server/internal/testutil"
)

type dispatchCall struct {
	message      *models.Message
	excludeToken string
}

// fakeNotifier records dispatches on a channel so tests can wait for the
// asynchronous fan-out without sleeping.
type fakeNotifier struct {
	calls chan dispatchCall
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{calls: make(chan dispatchCall, 8)}
}

func (f *fakeNotifier) Dispatch(_ context.Context, message *models.Message, excludeToken string) error {
	f.calls <- dispatchCall{message: message, excludeToken: excludeToken}
	return nil
}

func (f *fakeNotifier) wait(t *testing.T) dispatchCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
		return dispatchCall{}
	}
}

type messageFixture struct {
	helper   *testutil.TestHelper
	service  *MessageService
	chats    *repository.ChatRepository
	notifier *fakeNotifier
	aliceID  string
	bobID    string
	chatID   string
}

func newMessageFixture(t *testing.T) *messageFixture {
	h := testutil.NewTestHelper(t)
	aliceID := h.SeedUser("alice", "Alice", "https://example.com/alice.jpg")
	bobID := h.SeedUser("bob", "Bob", "")
	chatID := h.SeedChat("General", aliceID, aliceID, bobID)

	messages := repository.NewMessageRepository(h.Store)
	chats := repository.NewChatRepository(h.Store)
	directory := repository.NewUserDirectory(h.Store)
	notifier := newFakeNotifier()

	return &messageFixture{
		helper:   h,
		service:  NewMessageService(messages, chats, directory, notifier),
		chats:    chats,
		notifier: notifier,
		aliceID:  aliceID,
		bobID:    bobID,
		chatID:   chatID,
	}
}

func TestAppendStoresAndDecoratesMessage(t *testing.T) {
	f := newMessageFixture(t)

	message, err := f.service.Append(context.Background(), AppendMessageInput{
		ChatID:       f.chatID,
		SenderID:     f.aliceID,
		Content:      "  hello  ",
		ExcludeToken: "alice-token",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if message.ID == "" {
		t.Error("expected store-assigned message id")
	}
	if message.Content != "hello" {
		t.Errorf("content not trimmed: %q", message.Content)
	}
	if message.Type != models.TextMessage {
		t.Errorf("expected default text type, got %q", message.Type)
	}
	if message.CreatedAt.IsZero() {
		t.Error("expected store-assigned timestamp")
	}
	if message.Sender == nil || message.Sender.Username != "Alice" {
		t.Errorf("sender not decorated: %+v", message.Sender)
	}

	call := f.notifier.wait(t)
	if call.message.ID != message.ID {
		t.Errorf("dispatched message %s, want %s", call.message.ID, message.ID)
	}
	if call.excludeToken != "alice-token" {
		t.Errorf("exclude token %q, want alice-token", call.excludeToken)
	}
}

func TestAppendKeepsExplicitType(t *testing.T) {
	f := newMessageFixture(t)

	message, err := f.service.Append(context.Background(), AppendMessageInput{
		ChatID:   f.chatID,
		SenderID: f.aliceID,
		Content:  "sticker-pack/42",
		Type:     models.StickerMessage,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if message.Type != models.StickerMessage {
		t.Errorf("type %q, want sticker", message.Type)
	}
}

func TestAppendUpdatesLastMessagePointer(t *testing.T) {
	f := newMessageFixture(t)

	message, err := f.service.Append(context.Background(), AppendMessageInput{
		ChatID:   f.chatID,
		SenderID: f.bobID,
		Content:  "latest",
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	// The dispatch runs after the pointer update, so once it is observed the
	// pointer is committed.
	f.notifier.wait(t)

	chat, err := f.chats.FindByID(context.Background(), f.chatID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if chat.LastMessageID != message.ID {
		t.Errorf("last_message_id = %q, want %q", chat.LastMessageID, message.ID)
	}
}

func TestAppendValidation(t *testing.T) {
	f := newMessageFixture(t)

	tests := []struct {
		name  string
		input AppendMessageInput
	}{
		{"missing chat id", AppendMessageInput{SenderID: f.aliceID, Content: "hi"}},
		{"missing sender id", AppendMessageInput{ChatID: f.chatID, Content: "hi"}},
		{"empty content", AppendMessageInput{ChatID: f.chatID, SenderID: f.aliceID, Content: "   "}},
		{"bad type", AppendMessageInput{ChatID: f.chatID, SenderID: f.aliceID, Content: "hi", Type: "NOT VALID"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Append(context.Background(), tt.input)
			if !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAppendUnknownChatOrSender(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.service.Append(context.Background(), AppendMessageInput{
		ChatID:   "missing-chat",
		SenderID: f.aliceID,
		Content:  "hi",
	})
	if !apperr.IsNotFound(err) {
		t.Errorf("unknown chat: expected not found, got %v", err)
	}

	_, err = f.service.Append(context.Background(), AppendMessageInput{
		ChatID:   f.chatID,
		SenderID: "missing-user",
		Content:  "hi",
	})
	if !apperr.IsNotFound(err) {
		t.Errorf("unknown sender: expected not found, got %v", err)
	}
}

func TestHistoryPagination(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		f.helper.SeedMessage(f.chatID, f.aliceID, "msg")
	}

	// First page: newest first, default limit.
	page1, err := f.service.History(ctx, f.chatID, nil, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page1) != DefaultHistoryLimit {
		t.Fatalf("page 1 size %d, want %d", len(page1), DefaultHistoryLimit)
	}
	for i := 1; i < len(page1); i++ {
		if !page1[i].CreatedAt.Before(page1[i-1].CreatedAt) {
			t.Fatal("page 1 not in descending timestamp order")
		}
	}

	// Walk the full history through the cursor; no duplicates, no gaps.
	seen := make(map[string]bool)
	cursor := (*time.Time)(nil)
	total := 0
	for {
		page, err := f.service.History(ctx, f.chatID, cursor, DefaultHistoryLimit)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		for i := range page {
			if seen[page[i].ID] {
				t.Fatalf("message %s returned twice", page[i].ID)
			}
			seen[page[i].ID] = true
		}
		total += len(page)
		if len(page) < DefaultHistoryLimit {
			break
		}
		last := page[len(page)-1].CreatedAt
		cursor = &last
	}
	if total != 25 {
		t.Errorf("walked %d messages, want 25", total)
	}
}

// Clients page with the millisecond timestamp from the response, not the
// store's internal time. That round trip must lose nothing: every message
// comes back exactly once.
func TestHistoryPaginationThroughWireTimestamp(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		f.helper.SeedMessage(f.chatID, f.aliceID, "msg")
	}

	seen := make(map[string]bool)
	var cursor *time.Time
	total := 0
	for {
		page, err := f.service.History(ctx, f.chatID, cursor, 3)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		for i := range page {
			resp := page[i].ToResponse()
			if !time.UnixMilli(resp.Timestamp).UTC().Equal(page[i].CreatedAt) {
				t.Fatalf("wire timestamp %d does not round-trip to %v", resp.Timestamp, page[i].CreatedAt)
			}
			if seen[page[i].ID] {
				t.Fatalf("message %s returned twice", page[i].ID)
			}
			seen[page[i].ID] = true
		}
		total += len(page)
		if len(page) < 3 {
			break
		}
		// Rebuild the cursor the way the transport does, from milliseconds.
		next := time.UnixMilli(page[len(page)-1].ToResponse().Timestamp).UTC()
		cursor = &next
	}
	if total != 7 {
		t.Errorf("walked %d messages via wire cursor, want 7", total)
	}
}

func TestHistoryCursorIsExclusive(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.helper.SeedMessage(f.chatID, f.aliceID, "older")
	boundaryID := f.helper.SeedMessage(f.chatID, f.aliceID, "boundary")

	page, err := f.service.History(ctx, f.chatID, nil, 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 1 || page[0].ID != boundaryID {
		t.Fatalf("expected boundary message first")
	}

	next, err := f.service.History(ctx, f.chatID, &page[0].CreatedAt, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(next) != 1 || next[0].Content != "older" {
		t.Fatalf("boundary message repeated or older message missing: %+v", next)
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	f := newMessageFixture(t)
	for i := 0; i < MaxHistoryLimit+10; i++ {
		f.helper.SeedMessage(f.chatID, f.aliceID, "msg")
	}

	page, err := f.service.History(context.Background(), f.chatID, nil, MaxHistoryLimit+50)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != MaxHistoryLimit {
		t.Errorf("page size %d, want clamp to %d", len(page), MaxHistoryLimit)
	}
}

func TestHistoryDecoratesSenders(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	f.helper.SeedMessage(f.chatID, f.aliceID, "from alice")
	f.helper.SeedMessage(f.chatID, f.bobID, "from bob")
	f.helper.SeedMessage(f.chatID, "ghost-user", "from nobody")

	page, err := f.service.History(ctx, f.chatID, nil, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page))
	}

	byContent := make(map[string]*models.MessageUser)
	for i := range page {
		byContent[page[i].Content] = page[i].Sender
	}
	if byContent["from alice"] == nil || byContent["from alice"].Username != "Alice" {
		t.Error("alice not decorated")
	}
	if byContent["from bob"] == nil || byContent["from bob"].Username != "Bob" {
		t.Error("bob not decorated")
	}
	// A vanished sender keeps the message readable with a bare id.
	ghost := byContent["from nobody"]
	if ghost == nil || ghost.ID != "ghost-user" || ghost.Username != "" {
		t.Errorf("ghost sender placeholder wrong: %+v", ghost)
	}
}

func TestHistoryUnknownChat(t *testing.T) {
	f := newMessageFixture(t)
	_, err := f.service.History(context.Background(), "missing-chat", nil, 10)
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestPostAppendNotifiesEvenWhenPointerUpdateFails(t *testing.T) {
	f := newMessageFixture(t)
	ctx := context.Background()

	message := &models.Message{
		ID:       "m1",
		ChatID:   "vanished-chat", // pointer update will fail
		SenderID: f.aliceID,
		Content:  "hi",
		Type:     models.TextMessage,
	}
	f.service.postAppend(ctx, message, "")

	call := f.notifier.wait(t)
	if call.message.ID != "m1" {
		t.Errorf("dispatched %s, want m1", call.message.ID)
	}
}
