package service

import (
	"context"
	"testing"

	"github.com/Zhenya20062/comranet-server/internal/apperr"
	"github.com/Zhenya20062/comranet-server/internal/repository"
	"github.com/Zhenya20062/comranet-server/internal/testutil"
)

type chatFixture struct {
	helper  *testutil.TestHelper
	service *ChatService
	chats   *repository.ChatRepository
	aliceID string
	bobID   string
}

func newChatFixture(t *testing.T) *chatFixture {
	h := testutil.NewTestHelper(t)
	aliceID := h.SeedUser("alice", "Alice", "")
	bobID := h.SeedUser("bob", "Bob", "")

	chats := repository.NewChatRepository(h.Store)
	messages := repository.NewMessageRepository(h.Store)
	directory := repository.NewUserDirectory(h.Store)

	return &chatFixture{
		helper:  h,
		service: NewChatService(chats, messages, directory),
		chats:   chats,
		aliceID: aliceID,
		bobID:   bobID,
	}
}

func TestCreateChatStoresChatAndMemberships(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	chat, err := f.service.Create(ctx, CreateChatInput{
		Title:   "  Weekend plans  ",
		OwnerID: f.aliceID,
		Members: []string{f.aliceID, f.bobID},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if chat.ID == "" {
		t.Fatal("expected store-assigned chat id")
	}
	if chat.Title != "Weekend plans" {
		t.Errorf("title not trimmed: %q", chat.Title)
	}

	members, err := f.chats.MemberIDs(ctx, chat.ID)
	if err != nil {
		t.Fatalf("MemberIDs: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("expected 2 members, got %d", len(members))
	}
}

func TestCreateChatValidation(t *testing.T) {
	f := newChatFixture(t)

	tests := []struct {
		name  string
		input CreateChatInput
	}{
		{"empty title", CreateChatInput{OwnerID: f.aliceID, Members: []string{f.aliceID}}},
		{"missing owner", CreateChatInput{Title: "Chat", Members: []string{f.aliceID}}},
		{"no members", CreateChatInput{Title: "Chat", OwnerID: f.aliceID}},
		{"blank member id", CreateChatInput{Title: "Chat", OwnerID: f.aliceID, Members: []string{" "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Create(context.Background(), tt.input); !apperr.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLeaveRemovesMembership(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	chatID := f.helper.SeedChat("General", f.aliceID, f.aliceID, f.bobID)

	if err := f.service.Leave(ctx, chatID, f.bobID); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	members, err := f.chats.MemberIDs(ctx, chatID)
	if err != nil {
		t.Fatalf("MemberIDs: %v", err)
	}
	if len(members) != 1 || members[0] != f.aliceID {
		t.Errorf("expected only alice to remain, got %v", members)
	}

	if err := f.service.Leave(ctx, chatID, f.bobID); !apperr.IsNotFound(err) {
		t.Errorf("second leave: expected not found, got %v", err)
	}
}

func TestSummaryWithoutMessages(t *testing.T) {
	f := newChatFixture(t)
	chatID := f.helper.SeedChat("Quiet", f.aliceID, f.aliceID)

	summary, err := f.service.Summary(context.Background(), chatID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.ChatID != chatID || summary.Title != "Quiet" {
		t.Errorf("wrong summary: %+v", summary)
	}
	if summary.LastMessage != nil {
		t.Error("expected no last message for a fresh chat")
	}
}

func TestSummaryIncludesDecoratedLastMessage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	chatID := f.helper.SeedChat("General", f.aliceID, f.aliceID, f.bobID)

	messageID := f.helper.SeedMessage(chatID, f.bobID, "see you there")
	if err := f.chats.UpdateLastMessage(ctx, chatID, messageID); err != nil {
		t.Fatalf("UpdateLastMessage: %v", err)
	}

	summary, err := f.service.Summary(ctx, chatID)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.LastMessage == nil {
		t.Fatal("expected last message in summary")
	}
	if summary.LastMessage.MessageID != messageID {
		t.Errorf("last message id %q, want %q", summary.LastMessage.MessageID, messageID)
	}
	if summary.LastMessage.Content != "see you there" {
		t.Errorf("content %q", summary.LastMessage.Content)
	}
	if summary.LastMessage.UserData == nil || summary.LastMessage.UserData.Username != "Bob" {
		t.Errorf("sender not decorated: %+v", summary.LastMessage.UserData)
	}
	if summary.LastMessage.Timestamp == 0 {
		t.Error("expected millisecond timestamp")
	}
}

func TestListForUserReturnsOnlyMemberChats(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	shared := f.helper.SeedChat("Shared", f.aliceID, f.aliceID, f.bobID)
	f.helper.SeedChat("Bob only", f.bobID, f.bobID)

	list, err := f.service.ListForUser(ctx, f.aliceID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 1 || list[0].ChatID != shared {
		t.Errorf("expected just the shared chat, got %+v", list)
	}
}

func TestListForUserSkipsVanishedChats(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	kept := f.helper.SeedChat("Kept", f.aliceID, f.aliceID)
	// Membership pointing at a chat document that no longer exists.
	f.helper.SeedMembership("vanished-chat", f.aliceID)

	list, err := f.service.ListForUser(ctx, f.aliceID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 1 || list[0].ChatID != kept {
		t.Errorf("expected the vanished chat to be skipped, got %+v", list)
	}
}

func TestListForUserEmpty(t *testing.T) {
	f := newChatFixture(t)
	list, err := f.service.ListForUser(context.Background(), f.aliceID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %+v", list)
	}
}
