package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatportal-backend/internal/models"
	"chatportal-backend/internal/store"
)

func seedConversation(t *testing.T, s *Store, userID uuid.UUID, title string, created time.Time, contents ...string) models.Conversation {
	t.Helper()
	ctx := context.Background()
	conv := models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Status:    models.ConversationStatusActive,
		CreatedAt: created,
	}
	require.NoError(t, s.CreateConversation(ctx, &conv))
	for i, c := range contents {
		sender := models.SenderUser
		if i%2 == 1 {
			sender = models.SenderAI
		}
		require.NoError(t, s.AddMessage(ctx, &models.Message{
			ID:             uuid.New(),
			ConversationID: conv.ID,
			Sender:         sender,
			Content:        c,
			Timestamp:      created.Add(time.Duration(i) * time.Minute),
		}))
	}
	return conv
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{ID: uuid.New(), Email: "a@example.com", HashedPassword: "x"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	err := s.CreateUser(ctx, &models.User{ID: uuid.New(), Email: "a@example.com"})
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	created := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	conv := seedConversation(t, s, userID, "Login bug", created, "I need to fix the login bug", "Okay, I'll fix it today")

	got, err := s.GetConversation(ctx, userID, conv.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, models.SenderUser, got.Messages[0].Sender)
	assert.NotNil(t, got.Topics)

	_, err = s.GetConversation(ctx, uuid.New(), conv.ID, false)
	assert.ErrorIs(t, err, store.ErrNotFound, "other users cannot see the conversation")

	ended, err := s.EndConversation(ctx, store.EndConversationParams{
		ID:        conv.ID,
		UserID:    userID,
		EndedAt:   created.Add(10 * time.Minute),
		Summary:   "Fixing the login bug.",
		Topics:    []string{"login"},
		Sentiment: models.SentimentNeutral,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)
	assert.Equal(t, []string{"login"}, ended.Topics)
	assert.Len(t, ended.Messages, 2)

	_, err = s.EndConversation(ctx, store.EndConversationParams{ID: conv.ID, UserID: userID, EndedAt: time.Now()})
	assert.ErrorIs(t, err, store.ErrConflict, "ending twice must fail")

	require.NoError(t, s.DeleteConversation(ctx, userID, conv.ID))
	msgs, err := s.ListMessages(ctx, userID, nil)
	require.NoError(t, err)
	assert.Empty(t, msgs, "messages are removed with their conversation")
	assert.ErrorIs(t, s.DeleteConversation(ctx, userID, conv.ID), store.ErrNotFound)
}

func TestListConversationsFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	older := seedConversation(t, s, userID, "Pricing review", base, "pricing")
	newer := seedConversation(t, s, userID, "Login issues", base.Add(48*time.Hour), "login")
	seedConversation(t, s, uuid.New(), "Someone else", base, "hidden")

	_, err := s.EndConversation(ctx, store.EndConversationParams{
		ID: older.ID, UserID: userID, EndedAt: base.Add(time.Hour), Topics: []string{"pricing", "plans"},
	})
	require.NoError(t, err)

	all, err := s.ListConversations(ctx, userID, models.ConversationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")
	assert.Nil(t, all[0].Messages)

	ended, err := s.ListConversations(ctx, userID, models.ConversationFilter{Status: models.ConversationStatusEnded, WithMessages: true})
	require.NoError(t, err)
	require.Len(t, ended, 1)
	assert.Equal(t, older.ID, ended[0].ID)
	assert.Len(t, ended[0].Messages, 1)

	search, err := s.ListConversations(ctx, userID, models.ConversationFilter{Search: "LOGIN"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, newer.ID, search[0].ID)

	from := base.Add(24 * time.Hour)
	recent, err := s.ListConversations(ctx, userID, models.ConversationFilter{DateFrom: &from})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, newer.ID, recent[0].ID)

	byTopic, err := s.ListConversations(ctx, userID, models.ConversationFilter{Topics: []string{"plans", "other"}})
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.Equal(t, older.ID, byTopic[0].ID)
}

func TestListMessagesAndQueries(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a := seedConversation(t, s, userID, "A", base, "one", "two")
	seedConversation(t, s, userID, "B", base.Add(time.Hour), "three")

	all, err := s.ListMessages(ctx, userID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "one", all[0].Content)
	assert.Equal(t, "three", all[2].Content)

	onlyA, err := s.ListMessages(ctx, userID, &a.ID)
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	err = s.AddMessage(ctx, &models.Message{ID: uuid.New(), ConversationID: uuid.New(), Content: "orphan"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	first := &models.ConversationQuery{ID: uuid.New(), UserID: userID, QueryText: "first", RelevantConversations: []uuid.UUID{a.ID}}
	second := &models.ConversationQuery{ID: uuid.New(), UserID: userID, QueryText: "second"}
	require.NoError(t, s.CreateConversationQuery(ctx, first))
	require.NoError(t, s.CreateConversationQuery(ctx, second))
	assert.False(t, first.CreatedAt.IsZero())

	log, err := s.ListConversationQueries(ctx, userID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "second", log[0].QueryText)
	assert.Equal(t, []uuid.UUID{a.ID}, log[1].RelevantConversations)

	other, err := s.ListConversationQueries(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}
