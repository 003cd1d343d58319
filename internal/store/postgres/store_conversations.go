package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"chatportal-backend/internal/models"
	"chatportal-backend/internal/store"
)

const conversationColumns = `c.id, c.user_id, c.title, c.status, c.created_at, c.ended_at, c.summary, c.topics, c.sentiment,
	(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&c.Status,
		&c.CreatedAt,
		&c.EndedAt,
		&c.Summary,
		&c.Topics,
		&c.Sentiment,
		&c.MessageCount,
	)
	if err != nil {
		return nil, err
	}
	if c.Topics == nil {
		c.Topics = []string{}
	}
	return &c, nil
}

// CreateConversation inserts a new active conversation.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, title, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, query, conv.ID, conv.UserID, conv.Title, string(conv.Status), conv.CreatedAt)
	if err != nil {
		log.Printf("ERROR [PostgresStore] CreateConversation: Failed to insert conversation %s: %v", conv.ID, err)
		return fmt.Errorf("database error creating conversation: %w", err)
	}
	return nil
}

// GetConversation fetches one of the user's conversations, optionally with its messages.
func (s *PostgresStore) GetConversation(ctx context.Context, userID, id uuid.UUID, withMessages bool) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE c.id = $1 AND c.user_id = $2`

	conv, err := scanConversation(s.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning conversation: %w", err)
	}

	if withMessages {
		byConv, err := s.messagesFor(ctx, []uuid.UUID{conv.ID})
		if err != nil {
			return nil, err
		}
		conv.Messages = byConv[conv.ID]
	}
	return conv, nil
}

// ListConversations builds the WHERE clause dynamically from the filter.
// Results are ordered newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, userID uuid.UUID, filter models.ConversationFilter) ([]models.Conversation, error) {
	clauses := []string{"c.user_id = $1"}
	args := []interface{}{userID}
	argID := 2

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("c.status = $%d", argID))
		args = append(args, string(filter.Status))
		argID++
	}
	if filter.Search != "" {
		clauses = append(clauses, fmt.Sprintf("c.title ILIKE '%%' || $%d || '%%'", argID))
		args = append(args, filter.Search)
		argID++
	}
	if filter.DateFrom != nil {
		clauses = append(clauses, fmt.Sprintf("c.created_at >= $%d", argID))
		args = append(args, *filter.DateFrom)
		argID++
	}
	if filter.DateTo != nil {
		clauses = append(clauses, fmt.Sprintf("c.created_at <= $%d", argID))
		args = append(args, *filter.DateTo)
		argID++
	}
	if len(filter.Topics) > 0 {
		clauses = append(clauses, fmt.Sprintf("c.topics && $%d", argID))
		args = append(args, filter.Topics)
		argID++
	}

	query := `SELECT ` + conversationColumns + `
		FROM conversations c
		WHERE ` + strings.Join(clauses, " AND ") + `
		ORDER BY c.created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying conversations: %w", err)
	}
	defer rows.Close()

	items := []models.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning conversation row: %w", err)
		}
		items = append(items, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation rows: %w", err)
	}

	if filter.WithMessages && len(items) > 0 {
		ids := make([]uuid.UUID, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		byConv, err := s.messagesFor(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Messages = byConv[items[i].ID]
		}
	}
	return items, nil
}

// EndConversation marks an active conversation ended and writes its analysis.
func (s *PostgresStore) EndConversation(ctx context.Context, arg store.EndConversationParams) (*models.Conversation, error) {
	topics := arg.Topics
	if topics == nil {
		topics = []string{}
	}

	query := `
		UPDATE conversations
		SET status = 'ended', ended_at = $1, summary = $2, topics = $3, sentiment = $4
		WHERE id = $5 AND user_id = $6 AND status = 'active'`

	tag, err := s.db.Exec(ctx, query, arg.EndedAt, arg.Summary, topics, string(arg.Sentiment), arg.ID, arg.UserID)
	if err != nil {
		return nil, fmt.Errorf("error executing end conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the conversation is missing or it already ended.
		if _, err := s.GetConversation(ctx, arg.UserID, arg.ID, false); err != nil {
			return nil, err
		}
		return nil, store.ErrConflict
	}

	log.Printf("[PostgresStore] EndConversation: Conversation %s ended with %d topics", arg.ID, len(topics))
	return s.GetConversation(ctx, arg.UserID, arg.ID, true)
}

// DeleteConversation removes a conversation; its messages go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteConversation(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error executing delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
