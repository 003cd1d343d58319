package models

import (
	"time"

	"github.com/google/uuid"
)

// --- Request Structs ---

// SignupRequest defines the expected body for the signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest defines the expected body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChatRequest is the body of POST /v1/conversations/chat.
type ChatRequest struct {
	Message        string     `json:"message"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"` // nil starts a new conversation
}

// QueryRequest is the body of POST /v1/conversations/query.
type QueryRequest struct {
	Query    string     `json:"query"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Topics   []string   `json:"topics,omitempty"`
}

// ConversationFilter narrows conversation listings.
type ConversationFilter struct {
	Status   ConversationStatus
	Search   string // case-insensitive title substring
	DateFrom *time.Time
	DateTo   *time.Time
	Topics   []string // any overlap
	// WithMessages loads each conversation's ordered messages.
	WithMessages bool
}

// --- Response Structs ---

// UserResponse defines the user information returned by the API.
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AuthResponse defines the response body for successful authentication.
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the API form of a message.
type MessageResponse struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation"`
	Content        string    `json:"content"`
	Sender         Sender    `json:"sender"`
	Timestamp      time.Time `json:"timestamp"`
}

// LatestMessagePreview is the trimmed last message shown in listings.
type LatestMessagePreview struct {
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationListItem is the lightweight listing form of a conversation.
type ConversationListItem struct {
	ID            uuid.UUID             `json:"id"`
	Title         string                `json:"title"`
	Status        ConversationStatus    `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	EndedAt       *time.Time            `json:"ended_at"`
	MessageCount  int                   `json:"message_count"`
	Duration      *float64              `json:"duration"`
	LatestMessage *LatestMessagePreview `json:"latest_message"`
	Topics        []string              `json:"topics"`
}

// ConversationResponse is the detailed form of a conversation with its messages.
type ConversationResponse struct {
	ID           uuid.UUID          `json:"id"`
	Title        string             `json:"title"`
	Status       ConversationStatus `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	EndedAt      *time.Time         `json:"ended_at"`
	Summary      *string            `json:"summary"`
	Topics       []string           `json:"topics"`
	Sentiment    *Sentiment         `json:"sentiment"`
	Messages     []MessageResponse  `json:"messages"`
	Duration     *float64           `json:"duration"`
	MessageCount int                `json:"message_count"`
}

// ChatResponse is returned after a chat exchange.
type ChatResponse struct {
	ConversationID uuid.UUID       `json:"conversation_id"`
	UserMessage    MessageResponse `json:"user_message"`
	AIResponse     MessageResponse `json:"ai_response"`
}

// ConversationQueryResponse is the API form of a query log entry.
type ConversationQueryResponse struct {
	ID                    uuid.UUID   `json:"id"`
	QueryText             string      `json:"query_text"`
	Response              string      `json:"response"`
	RelevantConversations []uuid.UUID `json:"relevant_conversations"`
	CreatedAt             time.Time   `json:"created_at"`
}
