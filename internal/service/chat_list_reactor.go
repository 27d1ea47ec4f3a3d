package service

import (
	"context"
	"log"

	"github.com/Zhenya20062/comranet-server/internal/docstore"
	"github.com/Zhenya20062/comranet-server/internal/models"
	"github.com/Zhenya20062/comranet-server/internal/repository"
)

// SummaryProvider materializes a single chat-list entry.
type SummaryProvider interface {
	Summary(ctx context.Context, chatID string) (*models.ChatSummary, error)
}

// ChatListReactor keeps one connection's chat list live through two dependent
// subscription stages: a watch on the user's memberships and, derived from
// it, a watch on the chat documents in scope. Every stage-two signal
// re-materializes the whole list and pushes a complete snapshot, never a
// delta.
//
// The reactor runs as a single loop, so materializations for one connection
// are strictly sequential, and the stage-two subscription is always torn down
// before a new one opens — at most one exists at any instant.
type ChatListReactor struct {
	chats     repository.ChatRepositoryInterface
	summaries SummaryProvider
	userID    string
	send      func([]models.ChatSummary) error
}

func NewChatListReactor(
	chats repository.ChatRepositoryInterface,
	summaries SummaryProvider,
	userID string,
	send func([]models.ChatSummary) error,
) *ChatListReactor {
	return &ChatListReactor{
		chats:     chats,
		summaries: summaries,
		userID:    userID,
		send:      send,
	}
}

// Run blocks until ctx is canceled, the membership watch ends, or a push to
// the connection fails. Both subscriptions are closed on every return path.
func (r *ChatListReactor) Run(ctx context.Context) error {
	memberships, err := r.chats.WatchMemberships(ctx, r.userID)
	if err != nil {
		return err
	}
	defer memberships.Close()

	var (
		chatIDs []string
		stage2  docstore.Subscription
		signals <-chan struct{} // nil while no stage-two subscription exists
	)
	defer func() {
		if stage2 != nil {
			stage2.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case _, ok := <-memberships.Changes():
			if !ok {
				return memberships.Err()
			}
			// Always derive the id set from the latest membership state
			// before re-subscribing, so no emission can reflect an older
			// membership view than one already delivered.
			ids, err := r.chats.AvailableChatIDs(ctx, r.userID)
			if err != nil {
				log.Printf("Chat list for user %s: membership fetch failed: %v", r.userID, err)
				continue
			}
			chatIDs = ids

			if stage2 != nil {
				stage2.Close()
				stage2, signals = nil, nil
			}
			if len(chatIDs) == 0 {
				if err := r.send([]models.ChatSummary{}); err != nil {
					return err
				}
				continue
			}
			sub, err := r.chats.WatchChats(ctx, chatIDs)
			if err != nil {
				log.Printf("Chat list for user %s: chat watch failed: %v", r.userID, err)
				continue
			}
			stage2, signals = sub, sub.Changes()

		case _, ok := <-signals:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// The chat watch died underneath us (e.g. the change stream
				// broke). Re-open it for the current id set rather than idling
				// stale until the next membership change; if that fails too,
				// surface the error so the client reconnects.
				log.Printf("Chat list for user %s: chat watch ended: %v", r.userID, stage2.Err())
				stage2, signals = nil, nil
				sub, err := r.chats.WatchChats(ctx, chatIDs)
				if err != nil {
					return err
				}
				stage2, signals = sub, sub.Changes()
				continue
			}
			if err := r.send(r.materialize(ctx, chatIDs)); err != nil {
				return err
			}
		}
	}
}

// materialize builds the full snapshot for the chats currently in scope. A
// chat that fails to materialize (e.g. its document vanished) is excluded
// from this emission rather than failing the push.
func (r *ChatListReactor) materialize(ctx context.Context, chatIDs []string) []models.ChatSummary {
	list := make([]models.ChatSummary, 0, len(chatIDs))
	for _, id := range chatIDs {
		summary, err := r.summaries.Summary(ctx, id)
		if err != nil {
			log.Printf("Chat list for user %s: skipping chat %s: %v", r.userID, id, err)
			continue
		}
		list = append(list, *summary)
	}
	return list
}
