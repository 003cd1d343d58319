package llm

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      string
	healthErr error
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Healthy(context.Context) error { return s.healthErr }
func (s *stubProvider) Complete(context.Context, CompletionRequest) (string, error) {
	return s.name + " reply", nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestSelectPicksFirstHealthy(t *testing.T) {
	down := &stubProvider{name: "ollama", healthErr: errors.New("connection refused")}
	up := &stubProvider{name: "openai"}

	sel, err := Select(context.Background(), quietLogger(), down, nil, up, NewMockResponder())
	require.NoError(t, err)
	assert.Equal(t, "openai", sel.Name())
	require.Len(t, sel.Tried, 2)
	assert.Equal(t, "connection refused", sel.Tried[0].Err)
	assert.Empty(t, sel.Tried[1].Err)
	assert.NotNil(t, sel.Generative())
	assert.True(t, sel.Healthy("openai"))
	assert.False(t, sel.Healthy("ollama"))
	assert.False(t, sel.Healthy("mock"), "candidates after the chosen one are never probed")
}

func TestSelectFallsBackToMock(t *testing.T) {
	down := &stubProvider{name: "ollama", healthErr: errors.New("timeout")}

	sel, err := Select(context.Background(), quietLogger(), down, NewMockResponder())
	require.NoError(t, err)
	assert.Equal(t, "mock", sel.Name())
	assert.Nil(t, sel.Generative())
}

func TestSelectNoCandidates(t *testing.T) {
	sel, err := Select(context.Background(), quietLogger())
	assert.ErrorIs(t, err, ErrNoProvider)
	assert.Equal(t, "none", sel.Name())
	assert.Nil(t, sel.Generative())
}

func TestMockResponderIsDeterministic(t *testing.T) {
	m := NewMockResponder()
	req := CompletionRequest{Messages: []Message{
		{Role: RoleSystem, Content: "You are a helpful AI assistant."},
		{Role: RoleUser, Content: "How do I deploy this service?"},
	}}

	first, err := m.Complete(context.Background(), req)
	require.NoError(t, err)
	second, _ := m.Complete(context.Background(), req)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "Thanks for your message: 'How do I deploy this service?...'"))
}

func TestMockReplyCountsHistory(t *testing.T) {
	reply := MockReply("second question", 1)
	assert.Contains(t, reply, "I understand you're asking about 'second question...'")
	assert.Contains(t, reply, "(This is message #2 in our conversation)")

	assert.True(t, strings.HasPrefix(MockReply("x", 3), "The AI Chat Portal is functioning perfectly!"))
}
