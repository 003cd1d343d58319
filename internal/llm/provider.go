package llm

import (
	"context"
	"fmt"
	"log"
)

// Provider is a chat capability that can report whether it is usable.
type Provider interface {
	Completer
	Name() string
	Healthy(ctx context.Context) error
}

// Attempt records one probed candidate.
type Attempt struct {
	Name string `json:"name"`
	Err  string `json:"error,omitempty"`
}

// Selection is the outcome of choosing a chat provider at startup.
type Selection struct {
	Provider Provider
	Tried    []Attempt
}

// Name returns the chosen provider's name, or "none".
func (s Selection) Name() string {
	if s.Provider == nil {
		return "none"
	}
	return s.Provider.Name()
}

// Healthy reports whether the named candidate was probed and answered.
func (s Selection) Healthy(name string) bool {
	for _, a := range s.Tried {
		if a.Name == name && a.Err == "" {
			return true
		}
	}
	return false
}

// Generative returns the chosen provider when it produces real model output.
// The canned mock responder is not a summarizer, so it yields nil.
func (s Selection) Generative() Completer {
	if s.Provider == nil {
		return nil
	}
	if _, isMock := s.Provider.(*MockResponder); isMock {
		return nil
	}
	return s.Provider
}

// Select probes candidates in order and returns the first healthy one.
// Nil candidates are skipped.
func Select(ctx context.Context, logger *log.Logger, candidates ...Provider) (Selection, error) {
	if logger == nil {
		logger = log.Default()
	}

	var sel Selection
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if err := c.Healthy(ctx); err != nil {
			logger.Printf("[LLM] Provider %s unavailable: %v", c.Name(), err)
			sel.Tried = append(sel.Tried, Attempt{Name: c.Name(), Err: err.Error()})
			continue
		}
		sel.Tried = append(sel.Tried, Attempt{Name: c.Name()})
		sel.Provider = c
		logger.Printf("[LLM] Using provider %s", c.Name())
		return sel, nil
	}
	return sel, fmt.Errorf("probed %d candidates: %w", len(sel.Tried), ErrNoProvider)
}
