// Package analysis derives summaries, topics, sentiment, decisions and
// action items from conversation transcripts.
package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"chatportal-backend/internal/llm"
	"chatportal-backend/internal/models"
)

const (
	summarySystemPrompt = "You are an expert at analyzing conversations. Provide a concise 2-3 sentence summary highlighting the main topics, key decisions, and outcomes."
	summaryMaxTokens    = 200
	summaryTemperature  = 0.5

	emptySummary     = "No messages to analyze"
	assistantSummary = "Conversation with AI assistant"
)

// Result is the analysis record produced for one conversation.
type Result struct {
	Summary     string           `json:"summary"`
	Topics      []string         `json:"topics"`
	Sentiment   models.Sentiment `json:"sentiment"`
	KeyPoints   []string         `json:"key_points"`
	Decisions   []string         `json:"decisions"`
	ActionItems []string         `json:"action_items"`
	Stats
}

// Stats holds message and word counts. Averages use integer division.
type Stats struct {
	TotalMessages    int `json:"total_messages"`
	UserMessages     int `json:"user_messages"`
	AIMessages       int `json:"ai_messages"`
	WordCount        int `json:"word_count"`
	UserWordCount    int `json:"user_word_count"`
	AIWordCount      int `json:"ai_word_count"`
	AvgMessageLength int `json:"avg_message_length"`
	AvgUserLength    int `json:"avg_user_length"`
	AvgAILength      int `json:"avg_ai_length"`
}

// Analyzer produces a Result for a conversation. The summarizer is optional.
type Analyzer struct {
	summarizer llm.Completer
	timeout    time.Duration
	logger     *log.Logger
}

// NewAnalyzer creates an Analyzer. A nil summarizer always uses the rule-based summary;
// a zero timeout leaves the caller's context deadline in charge.
func NewAnalyzer(summarizer llm.Completer, timeout time.Duration, logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{summarizer: summarizer, timeout: timeout, logger: logger}
}

// Analyze never fails: summarizer errors degrade to the rule-based summary.
func (a *Analyzer) Analyze(ctx context.Context, messages []models.Message) Result {
	if len(messages) == 0 {
		return Result{
			Summary:     emptySummary,
			Topics:      []string{},
			Sentiment:   models.SentimentNeutral,
			KeyPoints:   []string{},
			Decisions:   []string{},
			ActionItems: []string{},
		}
	}

	features := ExtractFeatures(messages)
	return Result{
		Summary:     a.summarize(ctx, messages),
		Topics:      features.Topics,
		Sentiment:   features.Sentiment,
		KeyPoints:   nonNil(features.KeyPoints),
		Decisions:   features.Decisions,
		ActionItems: features.ActionItems,
		Stats:       ComputeStats(messages),
	}
}

func (a *Analyzer) summarize(ctx context.Context, messages []models.Message) string {
	if a.summarizer == nil {
		return BasicSummary(messages)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	summary, err := llm.Prompt(ctx, a.summarizer, summarySystemPrompt,
		"Summarize this conversation:\n\n"+formatTranscript(messages),
		summaryMaxTokens, summaryTemperature)
	if err != nil {
		a.logger.Printf("WARN [Analyzer] Summary generation failed, using rule-based summary: %v", err)
		return BasicSummary(messages)
	}
	return summary
}

// BasicSummary builds the deterministic summary from the user's messages.
func BasicSummary(messages []models.Message) string {
	var userMessages []string
	for _, m := range messages {
		if m.Sender == models.SenderUser {
			userMessages = append(userMessages, m.Content)
		}
	}

	if len(userMessages) == 0 {
		return assistantSummary
	}

	first := truncateRunes(userMessages[0], 100)
	switch {
	case len(userMessages) > 5:
		return fmt.Sprintf("Comprehensive discussion starting with '%s...' The conversation covered %d topics with %d total exchanges.",
			first, len(userMessages), len(messages))
	case len(userMessages) > 1:
		last := truncateRunes(userMessages[len(userMessages)-1], 80)
		return fmt.Sprintf("Conversation about '%s...' concluding with '%s...'", first, last)
	default:
		return "Brief discussion: " + first
	}
}

// ComputeStats counts messages and whitespace-delimited words per sender.
func ComputeStats(messages []models.Message) Stats {
	var s Stats
	for _, m := range messages {
		words := len(strings.Fields(m.Content))
		s.TotalMessages++
		s.WordCount += words
		switch m.Sender {
		case models.SenderUser:
			s.UserMessages++
			s.UserWordCount += words
		case models.SenderAI:
			s.AIMessages++
			s.AIWordCount += words
		}
	}
	s.AvgMessageLength = average(s.WordCount, s.TotalMessages)
	s.AvgUserLength = average(s.UserWordCount, s.UserMessages)
	s.AvgAILength = average(s.AIWordCount, s.AIMessages)
	return s
}

func average(total, n int) int {
	if n == 0 {
		return 0
	}
	return total / n
}

func formatTranscript(messages []models.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		speaker := "AI"
		if m.Sender == models.SenderUser {
			speaker = "User"
		}
		lines[i] = speaker + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
