// Package memory is a process-local store.Store used in development mode and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatportal-backend/internal/models"
	"chatportal-backend/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps every record in maps guarded by one mutex. Returned records are
// copies; callers never alias internal state.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]models.User
	conversations map[uuid.UUID]models.Conversation
	messages      map[uuid.UUID][]models.Message // by conversation, in insertion order
	queries       []models.ConversationQuery
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]models.User),
		conversations: make(map[uuid.UUID]models.Conversation),
		messages:      make(map[uuid.UUID][]models.Message),
	}
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, store.ErrConflict)
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = *user
	return nil
}

func (s *Store) CreateConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conversations[conv.ID]; exists {
		return fmt.Errorf("conversation %s: %w", conv.ID, store.ErrConflict)
	}
	c := *conv
	c.Topics = cloneStrings(c.Topics)
	c.Messages = nil
	s.conversations[c.ID] = c
	return nil
}

func (s *Store) GetConversation(_ context.Context, userID, id uuid.UUID, withMessages bool) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return nil, store.ErrNotFound
	}
	out := s.snapshot(c, withMessages)
	return &out, nil
}

func (s *Store) ListConversations(_ context.Context, userID uuid.UUID, filter models.ConversationFilter) ([]models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []models.Conversation{}
	for _, c := range s.conversations {
		if c.UserID != userID || !matches(c, filter) {
			continue
		}
		items = append(items, s.snapshot(c, filter.WithMessages))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) EndConversation(_ context.Context, arg store.EndConversationParams) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[arg.ID]
	if !ok || c.UserID != arg.UserID {
		return nil, store.ErrNotFound
	}
	if c.Status != models.ConversationStatusActive {
		return nil, store.ErrConflict
	}

	endedAt := arg.EndedAt
	c.Status = models.ConversationStatusEnded
	c.EndedAt = &endedAt
	c.Summary = arg.Summary
	c.Topics = cloneStrings(arg.Topics)
	c.Sentiment = arg.Sentiment
	s.conversations[c.ID] = c

	out := s.snapshot(c, true)
	return &out, nil
}

func (s *Store) DeleteConversation(_ context.Context, userID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok || c.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *Store) AddMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return fmt.Errorf("conversation %s: %w", msg.ConversationID, store.ErrNotFound)
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

func (s *Store) ListMessages(_ context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []models.Message{}
	for id, c := range s.conversations {
		if c.UserID != userID || (conversationID != nil && *conversationID != id) {
			continue
		}
		items = append(items, s.messages[id]...)
	}
	sortMessages(items)
	return items, nil
}

func (s *Store) CreateConversationQuery(_ context.Context, q *models.ConversationQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.CreatedAt = time.Now().UTC()
	entry := *q
	entry.RelevantConversations = append([]uuid.UUID{}, q.RelevantConversations...)
	s.queries = append(s.queries, entry)
	return nil
}

func (s *Store) ListConversationQueries(_ context.Context, userID uuid.UUID) ([]models.ConversationQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := []models.ConversationQuery{}
	for i := len(s.queries) - 1; i >= 0; i-- {
		if s.queries[i].UserID == userID {
			items = append(items, s.queries[i])
		}
	}
	return items, nil
}

// snapshot copies c and fills the derived fields. Callers hold the lock.
func (s *Store) snapshot(c models.Conversation, withMessages bool) models.Conversation {
	msgs := s.messages[c.ID]
	c.Topics = cloneStrings(c.Topics)
	c.MessageCount = len(msgs)
	c.Messages = nil
	if withMessages {
		c.Messages = append([]models.Message(nil), msgs...)
		sortMessages(c.Messages)
	}
	return c
}

func matches(c models.Conversation, f models.ConversationFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.Search)) {
		return false
	}
	if f.DateFrom != nil && c.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && c.CreatedAt.After(*f.DateTo) {
		return false
	}
	if len(f.Topics) > 0 && !overlaps(c.Topics, f.Topics) {
		return false
	}
	return true
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}
