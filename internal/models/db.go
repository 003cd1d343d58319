package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account that owns conversations.
type User struct {
	ID             uuid.UUID `db:"id"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ConversationStatus is the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusEnded  ConversationStatus = "ended"
)

// Sentiment is the label written at end-of-conversation. The empty value means unset.
type Sentiment string

const (
	SentimentVeryPositive Sentiment = "very positive"
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentVeryNegative Sentiment = "very negative"
)

// IsPositive reports whether s is one of the two positive labels.
func (s Sentiment) IsPositive() bool {
	return s == SentimentPositive || s == SentimentVeryPositive
}

// IsNegative reports whether s is one of the two negative labels.
func (s Sentiment) IsNegative() bool {
	return s == SentimentNegative || s == SentimentVeryNegative
}

// Conversation is a titled thread of messages. Summary, Topics and Sentiment are
// written once when the conversation ends and never mutated afterwards.
type Conversation struct {
	ID           uuid.UUID          `db:"id"`
	UserID       uuid.UUID          `db:"user_id"`
	Title        string             `db:"title"`
	Status       ConversationStatus `db:"status"`
	CreatedAt    time.Time          `db:"created_at"`
	EndedAt      *time.Time         `db:"ended_at"`  // set iff Status == ended
	Summary      string             `db:"summary"`   // "" until ended
	Topics       []string           `db:"topics"`    // at most 7
	Sentiment    Sentiment          `db:"sentiment"` // "" until ended
	MessageCount int                `db:"message_count"`
	Messages     []Message          `db:"-"` // ordered by timestamp, loaded on demand
}

// DurationMinutes returns the minutes between creation and end, rounded to two
// decimals, or nil while the conversation is active.
func (c *Conversation) DurationMinutes() *float64 {
	if c.EndedAt == nil {
		return nil
	}
	minutes := c.EndedAt.Sub(c.CreatedAt).Minutes()
	rounded := float64(int64(minutes*100+0.5)) / 100
	return &rounded
}

// ConversationQuery is the persisted log entry of a query over past conversations.
type ConversationQuery struct {
	ID                    uuid.UUID   `db:"id"`
	UserID                uuid.UUID   `db:"user_id"`
	QueryText             string      `db:"query_text"`
	Response              string      `db:"response"`
	RelevantConversations []uuid.UUID `db:"relevant_conversations"`
	CreatedAt             time.Time   `db:"created_at"`
}
