package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"chatportal-backend/internal/analysis"
	"chatportal-backend/internal/integrations"
	"chatportal-backend/internal/llm"
	"chatportal-backend/internal/models"
	"chatportal-backend/internal/search"
	"chatportal-backend/internal/store"
	"chatportal-backend/internal/suggestions"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrConversationEnded    = errors.New("conversation already ended")
)

const (
	MaxMessageLength = 5000
	MaxQueryLength   = 1000
	MaxLimit         = 50

	titleLength   = 50
	historyWindow = 10

	chatSystemPrompt = "You are a helpful AI assistant. Provide clear, concise, and friendly responses."
	chatMaxTokens    = 1000
	chatTemperature  = 0.7
)

// ConversationDeps wires the collaborators of a ConversationService.
type ConversationDeps struct {
	Store       store.Store
	Chat        llm.Completer // nil answers every message with the canned reply
	Analyzer    *analysis.Analyzer
	Engine      *search.Engine
	Suggestions *suggestions.Service
	Publishers  *integrations.Registry // optional
	Timeout     time.Duration          // per capability or publisher call; zero means none
	Logger      *log.Logger
	Now         func() time.Time
}

// ConversationService owns the conversation lifecycle and the queries over past conversations.
type ConversationService struct {
	store       store.Store
	chat        llm.Completer
	analyzer    *analysis.Analyzer
	engine      *search.Engine
	suggestions *suggestions.Service
	publishers  *integrations.Registry
	timeout     time.Duration
	logger      *log.Logger
	now         func() time.Time
}

func NewConversationService(deps ConversationDeps) *ConversationService {
	s := &ConversationService{
		store:       deps.Store,
		chat:        deps.Chat,
		analyzer:    deps.Analyzer,
		engine:      deps.Engine,
		suggestions: deps.Suggestions,
		publishers:  deps.Publishers,
		timeout:     deps.Timeout,
		logger:      deps.Logger,
		now:         deps.Now,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.analyzer == nil {
		s.analyzer = analysis.NewAnalyzer(nil, s.timeout, s.logger)
	}
	if s.engine == nil {
		s.engine = search.NewEngine(nil, nil, s.timeout, s.logger)
	}
	if s.suggestions == nil {
		s.suggestions = suggestions.NewServiceAt(s.now)
	}
	return s
}

// ChatResult is one stored exchange.
type ChatResult struct {
	ConversationID uuid.UUID
	UserMessage    models.Message
	AIMessage      models.Message
}

// EndResult is an ended conversation with the full analysis record.
type EndResult struct {
	Conversation *models.Conversation
	Analysis     analysis.Result
}

// QueryResult is an answer over the user's ended conversations.
type QueryResult struct {
	QueryID       uuid.UUID
	Query         string
	Answer        search.Answer
	TotalSearched int
}

// Chat stores the user's message, asks the chat provider for a reply and stores that too.
// A nil ConversationID starts a new conversation titled after the message.
func (s *ConversationService) Chat(ctx context.Context, userID uuid.UUID, req models.ChatRequest) (*ChatResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message must be at most %d characters", ErrValidation, MaxMessageLength)
	}

	var conv *models.Conversation
	if req.ConversationID != nil {
		existing, err := s.getConversation(ctx, userID, *req.ConversationID, true)
		if err != nil {
			return nil, err
		}
		if existing.Status == models.ConversationStatusEnded {
			return nil, fmt.Errorf("%w: cannot send messages to ended conversation", ErrConversationEnded)
		}
		conv = existing
	} else {
		conv = &models.Conversation{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     conversationTitle(message),
			Status:    models.ConversationStatusActive,
			CreatedAt: s.now().UTC(),
			Topics:    []string{},
		}
		if err := s.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		s.logger.Printf("[ConversationService] Chat: Started conversation %s for user %s", conv.ID, userID)
	}

	userMsg := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Sender:         models.SenderUser,
		Content:        message,
		Timestamp:      s.now().UTC(),
	}
	if err := s.store.AddMessage(ctx, &userMsg); err != nil {
		return nil, fmt.Errorf("storing user message: %w", err)
	}

	reply := s.reply(ctx, message, conv.Messages)

	aiTs := s.now().UTC()
	if !aiTs.After(userMsg.Timestamp) {
		aiTs = userMsg.Timestamp.Add(time.Microsecond)
	}
	aiMsg := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Sender:         models.SenderAI,
		Content:        reply,
		Timestamp:      aiTs,
	}
	if err := s.store.AddMessage(ctx, &aiMsg); err != nil {
		return nil, fmt.Errorf("storing ai message: %w", err)
	}

	return &ChatResult{ConversationID: conv.ID, UserMessage: userMsg, AIMessage: aiMsg}, nil
}

// reply asks the chat provider with the last few messages as context. Any provider
// failure degrades to the canned reply for this request.
func (s *ConversationService) reply(ctx context.Context, message string, history []models.Message) string {
	if s.chat == nil {
		return llm.MockReply(message, len(history))
	}

	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	msgs := make([]llm.Message, 0, len(recent)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: chatSystemPrompt})
	for _, m := range recent {
		role := llm.RoleUser
		if m.Sender == models.SenderAI {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	out, err := s.chat.Complete(callCtx, llm.CompletionRequest{
		Messages:    msgs,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		s.logger.Printf("WARN [ConversationService] Chat provider failed, using canned reply: %v", err)
		return llm.MockReply(message, len(history))
	}
	return out
}

// End closes an active conversation, writes its analysis and publishes the summary.
func (s *ConversationService) End(ctx context.Context, userID, id uuid.UUID) (*EndResult, error) {
	conv, err := s.getConversation(ctx, userID, id, true)
	if err != nil {
		return nil, err
	}
	if conv.Status == models.ConversationStatusEnded {
		return nil, ErrConversationEnded
	}

	result := s.analyzer.Analyze(ctx, conv.Messages)
	ended, err := s.store.EndConversation(ctx, store.EndConversationParams{
		ID:        conv.ID,
		UserID:    userID,
		EndedAt:   s.now().UTC(),
		Summary:   result.Summary,
		Topics:    result.Topics,
		Sentiment: result.Sentiment,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, ErrConversationEnded
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("ending conversation: %w", err)
	}
	s.logger.Printf("[ConversationService] End: Conversation %s ended (%d messages, %d topics, sentiment %s)",
		ended.ID, result.TotalMessages, len(result.Topics), result.Sentiment)

	s.publish(ctx, ended, result)
	return &EndResult{Conversation: ended, Analysis: result}, nil
}

func (s *ConversationService) publish(ctx context.Context, conv *models.Conversation, result analysis.Result) {
	if s.publishers == nil || len(s.publishers.Names()) == 0 {
		return
	}
	pubCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	endedAt := s.now().UTC()
	if conv.EndedAt != nil {
		endedAt = *conv.EndedAt
	}
	err := s.publishers.PublishAll(pubCtx, integrations.Summary{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Summary:        result.Summary,
		Topics:         result.Topics,
		Sentiment:      string(result.Sentiment),
		Decisions:      result.Decisions,
		ActionItems:    result.ActionItems,
		EndedAt:        endedAt,
	})
	if err != nil {
		s.logger.Printf("WARN [ConversationService] Publishing summary for %s failed: %v", conv.ID, err)
	}
}

// Query answers a question over the user's ended conversations and records it in the query log.
func (s *ConversationService) Query(ctx context.Context, userID uuid.UUID, req models.QueryRequest) (*QueryResult, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return nil, fmt.Errorf("%w: query must be at most %d characters", ErrValidation, MaxQueryLength)
	}
	if req.DateFrom != nil && req.DateTo != nil && req.DateFrom.After(*req.DateTo) {
		return nil, fmt.Errorf("%w: date_from must not be after date_to", ErrValidation)
	}

	corpus, err := s.store.ListConversations(ctx, userID, models.ConversationFilter{
		Status:       models.ConversationStatusEnded,
		DateFrom:     req.DateFrom,
		DateTo:       req.DateTo,
		Topics:       req.Topics,
		WithMessages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("loading conversations: %w", err)
	}

	answer := s.engine.Query(ctx, text, corpus)

	entry := &models.ConversationQuery{
		ID:                    uuid.New(),
		UserID:                userID,
		QueryText:             text,
		Response:              answer.Response,
		RelevantConversations: answer.RelevantIDs,
	}
	if err := s.store.CreateConversationQuery(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording query: %w", err)
	}

	return &QueryResult{QueryID: entry.ID, Query: text, Answer: answer, TotalSearched: len(corpus)}, nil
}

// Related suggests ended conversations similar to the given one.
func (s *ConversationService) Related(ctx context.Context, userID, id uuid.UUID, limit int) ([]suggestions.Related, error) {
	target, err := s.getConversation(ctx, userID, id, false)
	if err != nil {
		return nil, err
	}
	corpus, err := s.endedConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.suggestions.Related(*target, corpus, clampLimit(limit)), nil
}

// Trending counts topics of ended conversations created in the last days days.
func (s *ConversationService) Trending(ctx context.Context, userID uuid.UUID, days int) ([]suggestions.TrendingTopic, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", ErrValidation)
	}
	corpus, err := s.endedConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.suggestions.Trending(corpus, days), nil
}

// SuggestByTopics ranks ended conversations by how many of the topics they carry.
func (s *ConversationService) SuggestByTopics(ctx context.Context, userID uuid.UUID, topics []string, limit int) ([]suggestions.TopicMatch, error) {
	cleaned := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one topic is required", ErrValidation)
	}
	corpus, err := s.endedConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.suggestions.ByTopics(cleaned, corpus, clampLimit(limit)), nil
}

// List returns the user's conversations newest first, each with its messages.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, filter models.ConversationFilter) ([]models.Conversation, error) {
	if filter.Status != "" && filter.Status != models.ConversationStatusActive && filter.Status != models.ConversationStatusEnded {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	filter.WithMessages = true
	items, err := s.store.ListConversations(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	return items, nil
}

// Get returns one conversation with its messages.
func (s *ConversationService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Conversation, error) {
	return s.getConversation(ctx, userID, id, true)
}

// Delete removes a conversation and its messages.
func (s *ConversationService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.store.DeleteConversation(ctx, userID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("deleting conversation: %w", err)
	}
	s.logger.Printf("[ConversationService] Delete: Conversation %s deleted by user %s", id, userID)
	return nil
}

// ListMessages returns the user's messages, optionally for one conversation only.
func (s *ConversationService) ListMessages(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) ([]models.Message, error) {
	msgs, err := s.store.ListMessages(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return msgs, nil
}

// ListQueries returns the user's query log, newest first.
func (s *ConversationService) ListQueries(ctx context.Context, userID uuid.UUID) ([]models.ConversationQuery, error) {
	items, err := s.store.ListConversationQueries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}
	return items, nil
}

func (s *ConversationService) getConversation(ctx context.Context, userID, id uuid.UUID, withMessages bool) (*models.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, userID, id, withMessages)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("loading conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *ConversationService) endedConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	items, err := s.store.ListConversations(ctx, userID, models.ConversationFilter{Status: models.ConversationStatusEnded})
	if err != nil {
		return nil, fmt.Errorf("loading ended conversations: %w", err)
	}
	return items, nil
}

func (s *ConversationService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// conversationTitle is the first 50 characters of the opening message.
func conversationTitle(message string) string {
	r := []rune(message)
	if len(r) <= titleLength {
		return message
	}
	return string(r[:titleLength]) + "..."
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return suggestions.DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
