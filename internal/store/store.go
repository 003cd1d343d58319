package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"chatportal-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// ErrConflict is returned when a write does not apply to the record's current state,
// for example ending a conversation that has already ended.
var ErrConflict = errors.New("record state conflict")

// EndConversationParams carries the write-once annotations stored when a conversation ends.
type EndConversationParams struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	EndedAt   time.Time
	Summary   string
	Topics    []string
	Sentiment models.Sentiment
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	// User operations
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Conversation operations. Every lookup is scoped to the owning user.
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, userID, id uuid.UUID, withMessages bool) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID, filter models.ConversationFilter) ([]models.Conversation, error)
	// EndConversation returns ErrConflict when the conversation is not active.
	EndConversation(ctx context.Context, arg EndConversationParams) (*models.Conversation, error)
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, userID, id uuid.UUID) error

	// Message operations
	AddMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns the user's messages ordered by timestamp, optionally for one conversation.
	ListMessages(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.Message, error)

	// Query log operations
	CreateConversationQuery(ctx context.Context, q *models.ConversationQuery) error
	ListConversationQueries(ctx context.Context, userID uuid.UUID) ([]models.ConversationQuery, error)
}
