// Package integrations publishes end-of-conversation summaries to external workspaces.
package integrations

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Summary is what a publisher receives when a conversation ends.
type Summary struct {
	ConversationID uuid.UUID
	Title          string
	Summary        string
	Topics         []string
	Sentiment      string
	Decisions      []string
	ActionItems    []string
	EndedAt        time.Time
}

// Publisher delivers a summary to one external service.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, s Summary) error
}

// Registry holds the configured publishers by name.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
	logger     *log.Logger
}

// NewRegistry creates an empty registry. A nil logger uses log.Default().
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		publishers: make(map[string]Publisher),
		logger:     logger,
	}
}

// Register adds a publisher, replacing any previous one with the same name.
func (r *Registry) Register(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.publishers[p.Name()]; exists {
		r.logger.Printf("WARN [IntegrationRegistry] Publisher '%s' is already registered. Overwriting.", p.Name())
	}
	r.publishers[p.Name()] = p
	r.logger.Printf("[IntegrationRegistry] Registered publisher: %s", p.Name())
}

// Get retrieves a publisher by name.
func (r *Registry) Get(name string) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.publishers[name]
	if !exists {
		return nil, fmt.Errorf("no publisher registered with name: %s", name)
	}
	return p, nil
}

// Names lists the registered publishers alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.publishers))
	for name := range r.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PublishAll sends s to every publisher. One failing publisher does not stop the
// others; the returned error joins every failure.
func (r *Registry) PublishAll(ctx context.Context, s Summary) error {
	var errs []error
	for _, name := range r.Names() {
		p, err := r.Get(name)
		if err != nil {
			continue
		}
		if err := p.Publish(ctx, s); err != nil {
			r.logger.Printf("ERROR [IntegrationRegistry] Publisher %s failed for conversation %s: %v", name, s.ConversationID, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		r.logger.Printf("[IntegrationRegistry] Published conversation %s to %s", s.ConversationID, name)
	}
	return errors.Join(errs...)
}
