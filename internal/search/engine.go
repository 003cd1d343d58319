package search

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatportal-backend/internal/llm"
	"chatportal-backend/internal/models"
)

const (
	NoConversationsResponse = "No conversations found to query."
	NotFoundResponse        = "I couldn't find any relevant conversations matching your query. Try different keywords or check if you have any completed conversations."

	answerSystemPrompt = "You are an AI assistant that helps users understand their past conversations. Provide clear, insightful answers based on the conversation history. Highlight key themes, decisions, and patterns."
	answerMaxTokens    = 500
	answerTemperature  = 0.7

	maxMatches         = 5
	contextDepth       = 3
	contextMessages    = 5
	contextMessageChar = 150
	candidateMessages  = 10
	candidateContent   = 500
	hintTopics         = 3
	extraTopics        = 5
)

// Match is one ranked conversation in a query answer.
type Match struct {
	ID             uuid.UUID        `json:"id"`
	Title          string           `json:"title"`
	CreatedAt      time.Time        `json:"created_at"`
	Summary        string           `json:"summary"`
	RelevanceScore float64          `json:"relevance_score"`
	MessageCount   int              `json:"message_count"`
	Topics         []string         `json:"topics"`
	Sentiment      models.Sentiment `json:"sentiment"`
}

// Hint suggests a follow-up query.
type Hint struct {
	Type   string     `json:"type"`
	Text   string     `json:"text"`
	Topics []string   `json:"topics,omitempty"`
	Date   *time.Time `json:"date,omitempty"`
}

// Answer is the result of querying past conversations.
type Answer struct {
	Response      string      `json:"response"`
	Conversations []Match     `json:"conversations"`
	RelevantIDs   []uuid.UUID `json:"relevant_conversation_ids"`
	Suggestions   []Hint      `json:"related_suggestions"`
	Tier          Tier        `json:"scoring_tier,omitempty"`
}

type scored struct {
	conv  *models.Conversation
	score float64
}

// Engine answers questions about a corpus of past conversations.
type Engine struct {
	scorer    *Scorer
	responder llm.Completer
	timeout   time.Duration
	logger    *log.Logger
}

// NewEngine creates an Engine. A nil responder always uses the template answer.
func NewEngine(scorer *Scorer, responder llm.Completer, timeout time.Duration, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if scorer == nil {
		scorer = NewScorer(nil, nil, timeout, logger)
	}
	return &Engine{scorer: scorer, responder: responder, timeout: timeout, logger: logger}
}

// Query ranks conversations against text and composes an answer. Conversations
// should carry their messages; missing messages only weaken the ranking.
func (e *Engine) Query(ctx context.Context, text string, conversations []models.Conversation) Answer {
	if len(conversations) == 0 {
		return Answer{
			Response:      NoConversationsResponse,
			Conversations: []Match{},
			RelevantIDs:   []uuid.UUID{},
			Suggestions:   []Hint{},
		}
	}

	candidates := make([]string, len(conversations))
	for i := range conversations {
		candidates[i] = CandidateText(&conversations[i])
	}
	scores := e.scorer.Score(ctx, text, candidates)

	ranked := make([]scored, len(conversations))
	for i := range conversations {
		ranked[i] = scored{conv: &conversations[i], score: scores.Values[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	threshold := scores.Tier.Threshold()
	var relevant []scored
	for _, r := range ranked {
		if r.score > threshold {
			relevant = append(relevant, r)
		}
	}
	e.logger.Printf("[QueryEngine] %d of %d conversations relevant (tier=%s, threshold=%.2f)",
		len(relevant), len(conversations), scores.Tier, threshold)

	answer := Answer{
		Conversations: []Match{},
		RelevantIDs:   []uuid.UUID{},
		Suggestions:   suggestionHints(relevant),
		Tier:          scores.Tier,
	}
	if len(relevant) == 0 {
		answer.Response = NotFoundResponse
		return answer
	}

	answer.Response = e.respond(ctx, text, relevant)
	for i, r := range relevant {
		if i == maxMatches {
			break
		}
		answer.RelevantIDs = append(answer.RelevantIDs, r.conv.ID)
		answer.Conversations = append(answer.Conversations, Match{
			ID:             r.conv.ID,
			Title:          r.conv.Title,
			CreatedAt:      r.conv.CreatedAt,
			Summary:        r.conv.Summary,
			RelevanceScore: r.score,
			MessageCount:   messageCount(r.conv),
			Topics:         nonNil(r.conv.Topics),
			Sentiment:      r.conv.Sentiment,
		})
	}
	return answer
}

func (e *Engine) respond(ctx context.Context, query string, relevant []scored) string {
	if e.responder == nil {
		return templateAnswer(relevant)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf("Based on these past conversations:\n\n%s\n\nAnswer this question: %s\n\nProvide a comprehensive answer with specific examples from the conversations.",
		buildContext(relevant), query)
	out, err := llm.Prompt(ctx, e.responder, answerSystemPrompt, prompt, answerMaxTokens, answerTemperature)
	if err != nil {
		e.logger.Printf("WARN [QueryEngine] Answer generation failed, using template: %v", err)
		return templateAnswer(relevant)
	}
	return out
}

// CandidateText is the text a conversation is scored on: title, summary, topics
// and the opening of its first ten messages.
func CandidateText(c *models.Conversation) string {
	var b strings.Builder
	b.WriteString(c.Title)
	b.WriteString(". ")
	if c.Summary != "" {
		b.WriteString(c.Summary)
		b.WriteString(". ")
	}
	if len(c.Topics) > 0 {
		b.WriteString("Topics: ")
		b.WriteString(strings.Join(c.Topics, ", "))
		b.WriteString(". ")
	}

	msgs := c.Messages
	if len(msgs) > candidateMessages {
		msgs = msgs[:candidateMessages]
	}
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = m.Content
	}
	b.WriteString("Content: ")
	b.WriteString(truncate(strings.Join(parts, " "), candidateContent))
	return b.String()
}

func buildContext(relevant []scored) string {
	var lines []string
	for i, r := range relevant {
		if i == contextDepth {
			break
		}
		c := r.conv
		lines = append(lines,
			"\n"+strings.Repeat("=", 60),
			fmt.Sprintf("Conversation %d: %s", i+1, c.Title),
			fmt.Sprintf("Relevance: %.1f%%", r.score*100),
			"Date: "+c.CreatedAt.Format("2006-01-02 15:04"),
		)
		if c.Summary != "" {
			lines = append(lines, "\nSummary: "+c.Summary)
		}
		if len(c.Topics) > 0 {
			lines = append(lines, "Topics: "+strings.Join(c.Topics, ", "))
		}
		if c.Sentiment != "" {
			lines = append(lines, "Sentiment: "+string(c.Sentiment))
		}
		if len(c.Messages) > 0 {
			lines = append(lines, "\nKey Messages:")
			for j, m := range c.Messages {
				if j == contextMessages {
					break
				}
				speaker := "AI"
				if m.Sender == models.SenderUser {
					speaker = "User"
				}
				content := m.Content
				if len([]rune(content)) > contextMessageChar {
					content = truncate(content, contextMessageChar) + "..."
				}
				lines = append(lines, fmt.Sprintf("  %s: %s", speaker, content))
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func templateAnswer(relevant []scored) string {
	top := relevant[0]
	c := top.conv

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d relevant conversation(s), here's what I found:\n\n", len(relevant))
	fmt.Fprintf(&b, "**Most Relevant:** '%s' (Match: %.1f%%)\n", c.Title, top.score*100)
	fmt.Fprintf(&b, "**Date:** %s\n", c.CreatedAt.Format("January 02, 2006 at 15:04"))
	if c.Summary != "" {
		fmt.Fprintf(&b, "\n**Summary:** %s\n", c.Summary)
	}
	if len(c.Topics) > 0 {
		fmt.Fprintf(&b, "\n**Key Topics:** %s\n", strings.Join(c.Topics, ", "))
	}
	if c.Sentiment != "" {
		fmt.Fprintf(&b, "**Tone:** %s\n", capitalize(string(c.Sentiment)))
	}

	if len(relevant) > 1 {
		fmt.Fprintf(&b, "\n**Additional Context:** Found %d other related conversation(s) ", len(relevant)-1)
		end := min(len(relevant), 4)
		topics := unionTopics(relevant[1:end])
		if len(topics) > 0 {
			if len(topics) > extraTopics {
				topics = topics[:extraTopics]
			}
			b.WriteString("covering: " + strings.Join(topics, ", "))
		}
	}
	return b.String()
}

func suggestionHints(relevant []scored) []Hint {
	hints := []Hint{}

	end := min(len(relevant), contextDepth)
	if topics := unionTopics(relevant[:end]); len(topics) > 0 {
		if len(topics) > hintTopics {
			topics = topics[:hintTopics]
		}
		hints = append(hints, Hint{
			Type:   "topic",
			Text:   "Conversations about: " + strings.Join(topics, ", "),
			Topics: topics,
		})
	}

	if len(relevant) > 0 {
		created := relevant[0].conv.CreatedAt
		hints = append(hints, Hint{
			Type: "time",
			Text: "Recent conversations from " + created.Format("January 2006"),
			Date: &created,
		})
	}
	return hints
}

// unionTopics merges topic lists in first-seen order.
func unionTopics(items []scored) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range items {
		for _, t := range it.conv.Topics {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

func messageCount(c *models.Conversation) int {
	if len(c.Messages) > c.MessageCount {
		return len(c.Messages)
	}
	return c.MessageCount
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
