package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Message represents a single message in a conversation. Messages are immutable
// once created and ordered by Timestamp within their conversation.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation"`
	Sender         Sender    `db:"sender" json:"sender"`
	Content        string    `db:"content" json:"content"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
}
