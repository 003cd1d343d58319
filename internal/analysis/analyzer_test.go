package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatportal-backend/internal/llm"
	"chatportal-backend/internal/models"
)

type failingCompleter struct{ calls int }

func (f *failingCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	f.calls++
	return "", errors.New("connection reset by peer")
}

type recordingCompleter struct {
	reply string
	got   llm.CompletionRequest
}

func (r *recordingCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	r.got = req
	return r.reply, nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestAnalyzeEmpty(t *testing.T) {
	res := NewAnalyzer(nil, 0, quietLogger()).Analyze(context.Background(), nil)

	assert.Equal(t, "No messages to analyze", res.Summary)
	assert.Equal(t, models.SentimentNeutral, res.Sentiment)
	assert.Empty(t, res.Topics)
	assert.Empty(t, res.Decisions)
	assert.Empty(t, res.ActionItems)
	assert.Empty(t, res.KeyPoints)
	assert.Zero(t, res.WordCount)
}

func TestAnalyzeUsesSummarizer(t *testing.T) {
	c := &recordingCompleter{reply: "  The user asked about deployment.  "}
	msgs := []models.Message{user("How do I deploy?"), ai("Use the pipeline.")}

	res := NewAnalyzer(c, time.Second, quietLogger()).Analyze(context.Background(), msgs)

	assert.Equal(t, "The user asked about deployment.", res.Summary)
	require.Len(t, c.got.Messages, 2)
	assert.Equal(t, summarySystemPrompt, c.got.Messages[0].Content)
	assert.Equal(t, "Summarize this conversation:\n\nUser: How do I deploy?\nAI: Use the pipeline.", c.got.Messages[1].Content)
	assert.Equal(t, 200, c.got.MaxTokens)
	assert.Equal(t, 0.5, c.got.Temperature)
}

func TestAnalyzeFallsBackWhenSummarizerFails(t *testing.T) {
	c := &failingCompleter{}
	msgs := []models.Message{user("hello there"), ai("hi")}

	res := NewAnalyzer(c, time.Second, quietLogger()).Analyze(context.Background(), msgs)

	assert.Equal(t, 1, c.calls)
	assert.Equal(t, "Brief discussion: hello there", res.Summary)
	assert.Equal(t, 2, res.TotalMessages)
}

func TestAnalyzeFallsBackOnBlankSummary(t *testing.T) {
	c := &recordingCompleter{reply: "   "}
	res := NewAnalyzer(c, 0, quietLogger()).Analyze(context.Background(), []models.Message{user("hello")})
	assert.Equal(t, "Brief discussion: hello", res.Summary)
}

func TestBasicSummary(t *testing.T) {
	assert.Equal(t, "Conversation with AI assistant", BasicSummary([]models.Message{ai("welcome")}))
	assert.Equal(t, "Brief discussion: only one", BasicSummary([]models.Message{user("only one"), ai("ok")}))
	assert.Equal(t,
		"Conversation about 'first question...' concluding with 'final remark...'",
		BasicSummary([]models.Message{user("first question"), ai("answer"), user("final remark")}))

	var many []models.Message
	for i := 0; i < 6; i++ {
		many = append(many, user(fmt.Sprintf("m%d", i)), ai("ok"))
	}
	assert.Equal(t,
		"Comprehensive discussion starting with 'm0...' The conversation covered 6 topics with 12 total exchanges.",
		BasicSummary(many))
}

func TestBasicSummaryTruncatesExcerpts(t *testing.T) {
	first := repeat('a', 120)
	last := repeat('b', 90)
	got := BasicSummary([]models.Message{user(first), user(last)})
	assert.Equal(t, "Conversation about '"+repeat('a', 100)+"...' concluding with '"+repeat('b', 80)+"...'", got)
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats([]models.Message{
		user("one two three"),
		ai("four five"),
		user("six"),
	})
	assert.Equal(t, Stats{
		TotalMessages:    3,
		UserMessages:     2,
		AIMessages:       1,
		WordCount:        6,
		UserWordCount:    4,
		AIWordCount:      2,
		AvgMessageLength: 2,
		AvgUserLength:    2,
		AvgAILength:      2,
	}, s)
}

func TestComputeStatsNoAIMessages(t *testing.T) {
	s := ComputeStats([]models.Message{user("a b c d e")})
	assert.Equal(t, 5, s.AvgUserLength)
	assert.Zero(t, s.AvgAILength)
}

func TestAnalyzeSentimentLabelAlwaysValid(t *testing.T) {
	valid := map[models.Sentiment]bool{
		models.SentimentVeryPositive: true,
		models.SentimentPositive:     true,
		models.SentimentNeutral:      true,
		models.SentimentNegative:     true,
		models.SentimentVeryNegative: true,
	}
	inputs := []string{"", "great", "bad", "good bad", "hello world", "thanks, perfect, but wrong"}
	a := NewAnalyzer(nil, 0, quietLogger())
	for _, in := range inputs {
		res := a.Analyze(context.Background(), []models.Message{user(in)})
		assert.True(t, valid[res.Sentiment], "input %q gave %q", in, res.Sentiment)
		assert.LessOrEqual(t, len(res.Topics), maxTopics)
	}
}

func repeat(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
