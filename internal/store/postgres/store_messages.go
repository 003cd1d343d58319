package postgres

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"chatportal-backend/internal/models"
)

const messageColumns = `m.id, m.conversation_id, m.sender, m.content, m.timestamp`

// AddMessage appends a message to its conversation.
func (s *PostgresStore) AddMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender, content, timestamp)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, query, msg.ID, msg.ConversationID, string(msg.Sender), msg.Content, msg.Timestamp)
	if err != nil {
		log.Printf("ERROR [PostgresStore] AddMessage: Failed to insert message into conversation %s: %v", msg.ConversationID, err)
		return fmt.Errorf("database error adding message: %w", err)
	}
	return nil
}

// ListMessages returns the user's messages in timestamp order.
func (s *PostgresStore) ListMessages(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.user_id = $1 AND ($2::uuid IS NULL OR m.conversation_id = $2)
		ORDER BY m.timestamp, m.id`

	rows, err := s.db.Query(ctx, query, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	items := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning message row: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return items, nil
}

// messagesFor loads the ordered messages of several conversations in one round trip.
func (s *PostgresStore) messagesFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Message, error) {
	query := `SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.conversation_id = ANY($1)
		ORDER BY m.timestamp, m.id`

	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("error querying conversation messages: %w", err)
	}
	defer rows.Close()

	byConv := make(map[uuid.UUID][]models.Message, len(ids))
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Sender, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("error scanning conversation message row: %w", err)
		}
		byConv[m.ConversationID] = append(byConv[m.ConversationID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversation message rows: %w", err)
	}
	return byConv, nil
}
