package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"chatportal-backend/internal/analysis"
	"chatportal-backend/internal/models"
)

// Files are YAML; JSON documents decode through the same path.
type messageFile struct {
	Sender    string `yaml:"sender"`
	Content   string `yaml:"content"`
	Timestamp string `yaml:"timestamp"`
}

type conversationFile struct {
	ID        string        `yaml:"id"`
	Title     string        `yaml:"title"`
	CreatedAt string        `yaml:"created_at"`
	EndedAt   string        `yaml:"ended_at"`
	Summary   string        `yaml:"summary"`
	Topics    []string      `yaml:"topics"`
	Sentiment string        `yaml:"sentiment"`
	Messages  []messageFile `yaml:"messages"`
}

type corpusFile struct {
	Conversations []conversationFile `yaml:"conversations"`
}

// corpus keeps the file's own ids next to the derived UUIDs.
type corpus struct {
	conversations []models.Conversation
	labels        map[uuid.UUID]string
}

func (c *corpus) label(id uuid.UUID) string {
	if l, ok := c.labels[id]; ok {
		return l
	}
	return id.String()
}

func (c *corpus) find(ref string) (models.Conversation, bool) {
	id := conversationID(ref)
	for _, conv := range c.conversations {
		if conv.ID == id {
			return conv, true
		}
	}
	return models.Conversation{}, false
}

// conversationID accepts UUIDs as-is and maps any other label to a stable name-based UUID.
func conversationID(ref string) uuid.UUID {
	if id, err := uuid.Parse(ref); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(ref))
}

func readYAML(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// loadTranscript reads a single conversation. A bare list of messages is also accepted.
func loadTranscript(path string) (models.Conversation, error) {
	var file conversationFile
	if err := readYAML(path, &file); err != nil {
		var list []messageFile
		if listErr := readYAML(path, &list); listErr != nil {
			return models.Conversation{}, err
		}
		file = conversationFile{Messages: list}
	}
	if file.ID == "" {
		file.ID = path
	}
	return file.toModel()
}

// loadCorpus reads a corpus file. Conversations without a summary or topics are
// analyzed with the rule-based analyzer so they can be searched like ended ones.
func loadCorpus(ctx context.Context, path string, analyzer *analysis.Analyzer) (*corpus, error) {
	var file corpusFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	if len(file.Conversations) == 0 {
		return nil, fmt.Errorf("%s: no conversations", path)
	}

	c := &corpus{labels: make(map[uuid.UUID]string, len(file.Conversations))}
	for i, cf := range file.Conversations {
		if cf.ID == "" {
			cf.ID = fmt.Sprintf("conversation-%d", i+1)
		}
		conv, err := cf.toModel()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, dup := c.labels[conv.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate conversation id %q", path, cf.ID)
		}
		if conv.Summary == "" || len(conv.Topics) == 0 {
			fillAnalysis(ctx, &conv, analyzer)
		}
		c.labels[conv.ID] = cf.ID
		c.conversations = append(c.conversations, conv)
	}
	return c, nil
}

func fillAnalysis(ctx context.Context, conv *models.Conversation, analyzer *analysis.Analyzer) {
	result := analyzer.Analyze(ctx, conv.Messages)
	if conv.Summary == "" {
		conv.Summary = result.Summary
	}
	if len(conv.Topics) == 0 {
		conv.Topics = result.Topics
	}
	if conv.Sentiment == "" {
		conv.Sentiment = result.Sentiment
	}
}

func (cf conversationFile) toModel() (models.Conversation, error) {
	conv := models.Conversation{
		ID:        conversationID(cf.ID),
		Title:     strings.TrimSpace(cf.Title),
		Status:    models.ConversationStatusEnded,
		Summary:   cf.Summary,
		Topics:    cf.Topics,
		Sentiment: models.Sentiment(strings.ToLower(cf.Sentiment)),
	}

	created, err := parseTime(cf.CreatedAt)
	if err != nil {
		return conv, fmt.Errorf("conversation %q: created_at: %w", cf.ID, err)
	}

	for i, mf := range cf.Messages {
		ts, err := parseTime(mf.Timestamp)
		if err != nil {
			return conv, fmt.Errorf("conversation %q: message %d: %w", cf.ID, i+1, err)
		}
		sender := models.Sender(strings.ToLower(mf.Sender))
		switch sender {
		case models.SenderUser, models.SenderAI:
		case "assistant":
			sender = models.SenderAI
		default:
			return conv, fmt.Errorf("conversation %q: message %d: unknown sender %q", cf.ID, i+1, mf.Sender)
		}
		conv.Messages = append(conv.Messages, models.Message{
			ID:             uuid.NewSHA1(conv.ID, []byte(fmt.Sprint(i))),
			ConversationID: conv.ID,
			Sender:         sender,
			Content:        mf.Content,
			Timestamp:      ts,
		})
	}

	if created.IsZero() && len(conv.Messages) > 0 {
		created = conv.Messages[0].Timestamp
	}
	conv.CreatedAt = created
	// Untimed messages follow the conversation start a second apart.
	for i := range conv.Messages {
		if conv.Messages[i].Timestamp.IsZero() {
			conv.Messages[i].Timestamp = created.Add(time.Duration(i) * time.Second)
		}
	}
	conv.MessageCount = len(conv.Messages)

	ended, err := parseTime(cf.EndedAt)
	if err != nil {
		return conv, fmt.Errorf("conversation %q: ended_at: %w", cf.ID, err)
	}
	if ended.IsZero() {
		ended = created
		if n := len(conv.Messages); n > 0 {
			ended = conv.Messages[n-1].Timestamp
		}
	}
	conv.EndedAt = &ended

	if conv.Title == "" {
		conv.Title = cf.ID
	}
	if conv.Topics == nil {
		conv.Topics = []string{}
	}
	return conv, nil
}

var errBadTime = errors.New("expected RFC3339 or YYYY-MM-DD")

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadTime, s)
}
