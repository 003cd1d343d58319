package llm

import (
	"context"
	"fmt"
)

// MockResponder answers with canned demonstration text when no model is reachable.
// The reply depends only on the request, so repeated calls are stable.
type MockResponder struct{}

var _ Provider = (*MockResponder)(nil)

// NewMockResponder creates the canned responder.
func NewMockResponder() *MockResponder { return &MockResponder{} }

func (m *MockResponder) Name() string { return "mock" }

func (m *MockResponder) Healthy(context.Context) error { return nil }

// Complete quotes the last user message in one of four templates. History is every
// non-system message before it.
func (m *MockResponder) Complete(_ context.Context, req CompletionRequest) (string, error) {
	userMessage := ""
	history := 0
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			continue
		}
		history++
		if msg.Role == RoleUser {
			userMessage = msg.Content
		}
	}
	if history > 0 {
		history--
	}
	return MockReply(userMessage, history), nil
}

// MockReply renders the canned reply for a message given the number of prior messages.
func MockReply(userMessage string, historyLen int) string {
	templates := []string{
		fmt.Sprintf("Thanks for your message: '%s...' I'm currently in demonstration mode. Install Ollama (free!) or add an API key for real AI responses!", clip(userMessage, 50)),
		fmt.Sprintf("I understand you're asking about '%s...' This is a mock response. For real AI conversations, please set up Ollama or add an API key.", clip(userMessage, 40)),
		fmt.Sprintf("Regarding '%s...', that's interesting! The chat system is working. Add Ollama (free local AI) or an API key for intelligent responses.", clip(userMessage, 45)),
		"The AI Chat Portal is functioning perfectly! To enable real AI responses: 1) Install Ollama (free), or 2) Add an OpenAI API key to .env",
	}

	reply := templates[historyLen%len(templates)]
	if historyLen > 0 {
		reply += fmt.Sprintf("\n\n(This is message #%d in our conversation)", historyLen+1)
	}
	return reply
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
