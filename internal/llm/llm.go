// Package llm provides the external capabilities used by the conversation core:
// generative completion and text embedding.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyResponse is returned when a provider answers without usable content.
	ErrEmptyResponse = errors.New("provider returned an empty response")
	// ErrNoProvider is returned when no candidate provider reports healthy.
	ErrNoProvider = errors.New("no healthy provider available")
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest describes one generative call.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer produces text from a chat transcript.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Prompt is the system+user shorthand used by the analyzer and the query engine.
func Prompt(ctx context.Context, c Completer, system, user string, maxTokens int, temperature float64) (string, error) {
	out, err := c.Complete(ctx, CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
