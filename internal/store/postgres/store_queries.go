package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"chatportal-backend/internal/models"
)

// CreateConversationQuery records a query and the answer it produced.
func (s *PostgresStore) CreateConversationQuery(ctx context.Context, q *models.ConversationQuery) error {
	ids := q.RelevantConversations
	if ids == nil {
		ids = []uuid.UUID{}
	}

	query := `
		INSERT INTO conversation_queries (id, user_id, query_text, response, relevant_conversations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	if err := s.db.QueryRow(ctx, query, q.ID, q.UserID, q.QueryText, q.Response, ids).Scan(&q.CreatedAt); err != nil {
		return fmt.Errorf("database error creating conversation query: %w", err)
	}
	return nil
}

// ListConversationQueries returns the user's query log, newest first.
func (s *PostgresStore) ListConversationQueries(ctx context.Context, userID uuid.UUID) ([]models.ConversationQuery, error) {
	query := `
		SELECT id, user_id, query_text, response, relevant_conversations, created_at
		FROM conversation_queries
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying conversation queries: %w", err)
	}
	defer rows.Close()

	items := []models.ConversationQuery{}
	for rows.Next() {
		var q models.ConversationQuery
		if err := rows.Scan(&q.ID, &q.UserID, &q.QueryText, &q.Response, &q.RelevantConversations, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation query row: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation query rows: %w", err)
	}
	return items, nil
}
