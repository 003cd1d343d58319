package services

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatportal-backend/internal/integrations"
	"chatportal-backend/internal/llm"
	"chatportal-backend/internal/models"
	"chatportal-backend/internal/search"
	"chatportal-backend/internal/store"
	"chatportal-backend/internal/store/memory"
)

var fixedNow = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

type recordingCompleter struct {
	reply string
	err   error
	reqs  []llm.CompletionRequest
}

func (c *recordingCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.reqs = append(c.reqs, req)
	return c.reply, c.err
}

type capturePublisher struct {
	err error
	got []integrations.Summary
}

func (p *capturePublisher) Name() string { return "capture" }

func (p *capturePublisher) Publish(_ context.Context, s integrations.Summary) error {
	p.got = append(p.got, s)
	return p.err
}

func newTestService(t *testing.T, chat llm.Completer, publishers *integrations.Registry) (*ConversationService, *memory.Store) {
	t.Helper()
	st := memory.New()
	// Each reading advances one second so stored messages keep a strict order.
	tick := fixedNow
	svc := NewConversationService(ConversationDeps{
		Store:      st,
		Chat:       chat,
		Publishers: publishers,
		Logger:     quietLogger(),
		Now: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	})
	return svc, st
}

// seedEnded stores an ended conversation with the given messages and annotations.
func seedEnded(t *testing.T, st *memory.Store, userID uuid.UUID, created time.Time, title, summary string, topics []string, sentiment models.Sentiment, contents ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	conv := &models.Conversation{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Status:    models.ConversationStatusActive,
		CreatedAt: created,
	}
	require.NoError(t, st.CreateConversation(ctx, conv))
	for i, c := range contents {
		sender := models.SenderUser
		if i%2 == 1 {
			sender = models.SenderAI
		}
		require.NoError(t, st.AddMessage(ctx, &models.Message{
			ID: uuid.New(), ConversationID: conv.ID, Sender: sender, Content: c,
			Timestamp: created.Add(time.Duration(i) * time.Minute),
		}))
	}
	_, err := st.EndConversation(ctx, store.EndConversationParams{
		ID: conv.ID, UserID: userID, EndedAt: created.Add(time.Hour),
		Summary: summary, Topics: topics, Sentiment: sentiment,
	})
	require.NoError(t, err)
	return conv.ID
}

func TestChatStartsConversation(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	userID := uuid.New()
	long := strings.Repeat("a", 60)

	res, err := svc.Chat(context.Background(), userID, models.ChatRequest{Message: long})
	require.NoError(t, err)

	conv, err := st.GetConversation(context.Background(), userID, res.ConversationID, true)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"...", conv.Title)
	assert.Equal(t, models.ConversationStatusActive, conv.Status)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.SenderUser, conv.Messages[0].Sender)
	assert.Equal(t, models.SenderAI, conv.Messages[1].Sender)
	assert.True(t, res.AIMessage.Timestamp.After(res.UserMessage.Timestamp))
	assert.Equal(t, llm.MockReply(long, 0), res.AIMessage.Content)
}

func TestChatShortTitleKeptWhole(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	userID := uuid.New()
	res, err := svc.Chat(context.Background(), userID, models.ChatRequest{Message: "  Hello there  "})
	require.NoError(t, err)
	conv, err := st.GetConversation(context.Background(), userID, res.ConversationID, false)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", conv.Title)
}

func TestChatSendsRecentHistory(t *testing.T) {
	chat := &recordingCompleter{reply: "  real answer  "}
	svc, _ := newTestService(t, chat, nil)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Chat(ctx, userID, models.ChatRequest{Message: "message 0"})
	require.NoError(t, err)
	for i := 1; i < 6; i++ {
		_, err := svc.Chat(ctx, userID, models.ChatRequest{Message: "message", ConversationID: &first.ConversationID})
		require.NoError(t, err)
	}
	res, err := svc.Chat(ctx, userID, models.ChatRequest{Message: "latest", ConversationID: &first.ConversationID})
	require.NoError(t, err)
	assert.Equal(t, "real answer", res.AIMessage.Content)

	last := chat.reqs[len(chat.reqs)-1]
	require.Len(t, last.Messages, 12, "system prompt, ten history messages and the new one")
	assert.Equal(t, llm.RoleSystem, last.Messages[0].Role)
	assert.Equal(t, llm.RoleUser, last.Messages[1].Role)
	assert.Equal(t, llm.RoleAssistant, last.Messages[2].Role)
	assert.Equal(t, "latest", last.Messages[11].Content)
}

func TestChatProviderFailureUsesCannedReply(t *testing.T) {
	svc, _ := newTestService(t, &recordingCompleter{err: errors.New("connection refused")}, nil)
	res, err := svc.Chat(context.Background(), uuid.New(), models.ChatRequest{Message: "Is anyone there?"})
	require.NoError(t, err)
	assert.Equal(t, llm.MockReply("Is anyone there?", 0), res.AIMessage.Content)
}

func TestChatRejections(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Chat(ctx, userID, models.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Chat(ctx, userID, models.ChatRequest{Message: strings.Repeat("x", MaxMessageLength+1)})
	assert.ErrorIs(t, err, ErrValidation)

	missing := uuid.New()
	_, err = svc.Chat(ctx, userID, models.ChatRequest{Message: "hi", ConversationID: &missing})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	ended := seedEnded(t, st, userID, fixedNow, "Done", "", nil, "", "bye")
	_, err = svc.Chat(ctx, userID, models.ChatRequest{Message: "hi again", ConversationID: &ended})
	assert.ErrorIs(t, err, ErrConversationEnded)

	_, err = svc.Chat(ctx, uuid.New(), models.ChatRequest{Message: "not mine", ConversationID: &ended})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestEndConversation(t *testing.T) {
	pub := &capturePublisher{err: errors.New("workspace offline")}
	registry := integrations.NewRegistry(quietLogger())
	registry.Register(pub)
	svc, _ := newTestService(t, nil, registry)
	ctx := context.Background()
	userID := uuid.New()

	res, err := svc.Chat(ctx, userID, models.ChatRequest{Message: "I need to fix the login bug"})
	require.NoError(t, err)

	ended, err := svc.End(ctx, userID, res.ConversationID)
	require.NoError(t, err, "publisher failures are logged, not returned")
	assert.Equal(t, models.ConversationStatusEnded, ended.Conversation.Status)
	require.NotNil(t, ended.Conversation.EndedAt)
	assert.True(t, ended.Conversation.EndedAt.After(ended.Conversation.CreatedAt))
	assert.Equal(t, ended.Analysis.Summary, ended.Conversation.Summary)
	assert.Equal(t, ended.Analysis.Sentiment, ended.Conversation.Sentiment)
	assert.Equal(t, 2, ended.Analysis.TotalMessages)
	assert.NotEmpty(t, ended.Analysis.ActionItems)

	require.Len(t, pub.got, 1)
	assert.Equal(t, res.ConversationID, pub.got[0].ConversationID)
	assert.Equal(t, ended.Analysis.Summary, pub.got[0].Summary)

	_, err = svc.End(ctx, userID, res.ConversationID)
	assert.ErrorIs(t, err, ErrConversationEnded)

	_, err = svc.End(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func seedLoginCorpus(t *testing.T, st *memory.Store, userID uuid.UUID) []uuid.UUID {
	created := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	return []uuid.UUID{
		seedEnded(t, st, userID, created, "Quarterly pricing review", "Discussed pricing tiers", []string{"pricing", "tiers"}, models.SentimentNeutral,
			"What should enterprise pricing look like?", "Consider three tiers."),
		seedEnded(t, st, userID, created.Add(time.Minute), "Login bug triage", "Users could not login after the bug fix", []string{"login", "session", "cookie"}, models.SentimentNegative,
			"The login page fails with a bug", "Clear the session cookie and retry the login."),
		seedEnded(t, st, userID, created.Add(2*time.Minute), "Login redesign", "Planned a new login screen", []string{"login", "design", "oauth"}, models.SentimentPositive,
			"Let's redesign the login screen with oauth", "Sure, a cleaner login flow."),
	}
}

func TestQueryRecordsLog(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	ctx := context.Background()
	userID := uuid.New()

	empty, err := svc.Query(ctx, userID, models.QueryRequest{Query: "login"})
	require.NoError(t, err)
	assert.Equal(t, search.NoConversationsResponse, empty.Answer.Response)
	assert.Zero(t, empty.TotalSearched)

	ids := seedLoginCorpus(t, st, userID)
	// Active conversations are never searched.
	_, err = svc.Chat(ctx, userID, models.ChatRequest{Message: "login bug again"})
	require.NoError(t, err)

	res, err := svc.Query(ctx, userID, models.QueryRequest{Query: "login bug"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalSearched)
	require.NotEmpty(t, res.Answer.RelevantIDs)
	assert.Equal(t, ids[1], res.Answer.RelevantIDs[0])

	logEntries, err := svc.ListQueries(ctx, userID)
	require.NoError(t, err)
	require.Len(t, logEntries, 2)
	assert.Equal(t, "login bug", logEntries[0].QueryText)
	assert.Equal(t, res.Answer.Response, logEntries[0].Response)
	assert.Equal(t, res.Answer.RelevantIDs, logEntries[0].RelevantConversations)
}

func TestQueryFilters(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	ctx := context.Background()
	userID := uuid.New()
	seedLoginCorpus(t, st, userID)

	res, err := svc.Query(ctx, userID, models.QueryRequest{Query: "login", Topics: []string{"pricing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSearched)

	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	res, err = svc.Query(ctx, userID, models.QueryRequest{Query: "login", DateFrom: &from})
	require.NoError(t, err)
	assert.Zero(t, res.TotalSearched)

	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.Query(ctx, userID, models.QueryRequest{Query: "login", DateFrom: &from, DateTo: &to})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Query(ctx, userID, models.QueryRequest{Query: strings.Repeat("q", MaxQueryLength+1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSuggestionOperations(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	ctx := context.Background()
	userID := uuid.New()
	ids := seedLoginCorpus(t, st, userID)

	related, err := svc.Related(ctx, userID, ids[1], 0)
	require.NoError(t, err)
	require.NotEmpty(t, related)
	assert.Equal(t, ids[2], related[0].ID)
	for _, r := range related {
		assert.NotEqual(t, ids[1], r.ID)
	}

	_, err = svc.Related(ctx, userID, uuid.New(), 5)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	// The clock sits about 15 days after the corpus was created.
	trending, err := svc.Trending(ctx, userID, 30)
	require.NoError(t, err)
	require.NotEmpty(t, trending)
	assert.Equal(t, "login", trending[0].Topic)
	assert.Equal(t, 2, trending[0].ConversationCount)
	assert.Equal(t, 66.7, trending[0].Percentage)

	stale, err := svc.Trending(ctx, userID, 7)
	require.NoError(t, err)
	assert.Empty(t, stale)

	_, err = svc.Trending(ctx, userID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	byTopics, err := svc.SuggestByTopics(ctx, userID, []string{"OAuth", " design "}, 5)
	require.NoError(t, err)
	require.Len(t, byTopics, 1)
	assert.Equal(t, ids[2], byTopics[0].ID)
	assert.Equal(t, 1.0, byTopics[0].Relevance)

	_, err = svc.SuggestByTopics(ctx, userID, []string{" "}, 5)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListGetDelete(t *testing.T) {
	svc, st := newTestService(t, nil, nil)
	ctx := context.Background()
	userID := uuid.New()
	ids := seedLoginCorpus(t, st, userID)

	items, err := svc.List(ctx, userID, models.ConversationFilter{Search: "login"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, ids[2], items[0].ID)
	assert.Len(t, items[0].Messages, 2)

	_, err = svc.List(ctx, userID, models.ConversationFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrValidation)

	conv, err := svc.Get(ctx, userID, ids[0])
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)

	require.NoError(t, svc.Delete(ctx, userID, ids[0]))
	assert.ErrorIs(t, svc.Delete(ctx, userID, ids[0]), ErrConversationNotFound)
	_, err = svc.Get(ctx, userID, ids[0])
	assert.ErrorIs(t, err, ErrConversationNotFound)

	msgs, err := svc.ListMessages(ctx, userID, nil)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
	msgs, err = svc.ListMessages(ctx, userID, &ids[1])
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
