package models

import "time"

type MessageType string

const (
	TextMessage    MessageType = "text"
	StickerMessage MessageType = "sticker"
)

// MessageUser is the resolved sender identity attached to a message.
type MessageUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Message is immutable once created. ID and CreatedAt are assigned by the
// document store at write time.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Content   string
	Type      MessageType
	CreatedAt time.Time
	Sender    *MessageUser
}

// MessageResponse is the wire shape clients consume; timestamps travel as
// Unix milliseconds.
type MessageResponse struct {
	MessageID string       `json:"message_id"`
	ChatID    string       `json:"chat_id"`
	Content   string       `json:"content"`
	Type      MessageType  `json:"type"`
	Timestamp int64        `json:"timestamp"`
	UserData  *MessageUser `json:"user_data"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		MessageID: m.ID,
		ChatID:    m.ChatID,
		Content:   m.Content,
		Type:      m.Type,
		Timestamp: m.CreatedAt.UnixMilli(),
		UserData:  m.Sender,
	}
}
