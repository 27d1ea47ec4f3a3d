package models

// Chat is the mutable summary document for a chat. LastMessageID is empty
// until the first message arrives and afterwards always references a message
// belonging to this chat.
type Chat struct {
	ID            string
	Title         string
	PhotoURL      string
	OwnerID       string
	LastMessageID string
}

// ChatSummary is the materialized chat-list entry pushed to clients. It is
// rebuilt from the store on every emission and never cached.
type ChatSummary struct {
	ChatID      string           `json:"chat_id"`
	Title       string           `json:"title"`
	PhotoURL    string           `json:"photo_url,omitempty"`
	LastMessage *MessageResponse `json:"last_message_data,omitempty"`
}
