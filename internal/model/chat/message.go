package chat

import (
	"time"

	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

// Sender attributes a turn to the farmer or the assistant.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one turn in a conversation log. Messages are never edited once appended.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Sender         Sender        `json:"sender"`
	Content        string        `json:"content"`
	Language       language.Code `json:"language,omitempty"`
	CreatedAt      time.Time     `json:"timestamp"`
}
