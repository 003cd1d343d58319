// Package suggestions recommends related conversations and surfaces trending topics.
package suggestions

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatportal-backend/internal/models"
)

const (
	// MinRelatedScore is the composite score a candidate must exceed to be suggested.
	MinRelatedScore = 0.1

	DefaultLimit      = 5
	DefaultWindowDays = 30

	topicWeight     = 0.5
	textWeight      = 0.15
	sentimentExact  = 0.2
	sentimentNear   = 0.1
	maxReasonTopics = 3
	maxTrending     = 10

	reasonSeparator = " • "
	defaultReason   = "Similar content"
)

// Related is a conversation suggested alongside another.
type Related struct {
	ID              uuid.UUID        `json:"id"`
	Title           string           `json:"title"`
	Topics          []string         `json:"topics"`
	Sentiment       models.Sentiment `json:"sentiment"`
	CreatedAt       time.Time        `json:"created_at"`
	SimilarityScore float64          `json:"similarity_score"`
	Reason          string           `json:"reason"`
}

// TopicMatch is a conversation matched by explicit topics.
type TopicMatch struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Topics         []string  `json:"topics"`
	CreatedAt      time.Time `json:"created_at"`
	MatchingTopics []string  `json:"matching_topics"`
	Relevance      float64   `json:"relevance"`
}

// TrendingTopic counts a topic across a recent window.
type TrendingTopic struct {
	Topic             string  `json:"topic"`
	ConversationCount int     `json:"conversation_count"`
	Percentage        float64 `json:"percentage"`
}

// Service computes suggestions over an in-memory corpus.
type Service struct {
	now func() time.Time
}

// NewService creates a Service using the wall clock.
func NewService() *Service {
	return &Service{now: time.Now}
}

// NewServiceAt creates a Service whose notion of "now" is fixed by clock.
func NewServiceAt(clock func() time.Time) *Service {
	return &Service{now: clock}
}

// Related ranks corpus entries by similarity to target. The target itself and
// entries without topics are skipped.
func (s *Service) Related(target models.Conversation, corpus []models.Conversation, limit int) []Related {
	if limit <= 0 {
		limit = DefaultLimit
	}

	out := []Related{}
	for _, c := range corpus {
		if c.ID == target.ID || len(c.Topics) == 0 {
			continue
		}
		score := Similarity(target, c)
		if score <= MinRelatedScore {
			continue
		}
		out = append(out, Related{
			ID:              c.ID,
			Title:           c.Title,
			Topics:          c.Topics,
			Sentiment:       c.Sentiment,
			CreatedAt:       c.CreatedAt,
			SimilarityScore: score,
			Reason:          reason(target, c),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SimilarityScore > out[j].SimilarityScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Similarity is the weighted composite of topic overlap, sentiment agreement,
// temporal proximity and title/summary word overlap, capped at 1.
func Similarity(a, b models.Conversation) float64 {
	score := 0.0

	if len(a.Topics) > 0 && len(b.Topics) > 0 {
		score += setJaccard(a.Topics, b.Topics) * topicWeight
	}

	if a.Sentiment != "" && b.Sentiment != "" {
		switch {
		case a.Sentiment == b.Sentiment:
			score += sentimentExact
		case samePolarity(a.Sentiment, b.Sentiment):
			score += sentimentNear
		}
	}

	if !a.CreatedAt.IsZero() && !b.CreatedAt.IsZero() {
		switch days := daysApart(a.CreatedAt, b.CreatedAt); {
		case days < 7:
			score += 0.15
		case days < 30:
			score += 0.10
		case days < 90:
			score += 0.05
		}
	}

	score += setJaccard(
		strings.Fields(strings.ToLower(a.Title+" "+a.Summary)),
		strings.Fields(strings.ToLower(b.Title+" "+b.Summary)),
	) * textWeight

	return math.Min(score, 1.0)
}

func reason(a, b models.Conversation) string {
	var reasons []string

	if shared := intersect(a.Topics, b.Topics); len(shared) > 0 {
		if len(shared) > maxReasonTopics {
			shared = shared[:maxReasonTopics]
		}
		reasons = append(reasons, "Shared topics: "+strings.Join(shared, ", "))
	}

	if a.Sentiment != "" && a.Sentiment == b.Sentiment {
		reasons = append(reasons, "Similar sentiment ("+string(a.Sentiment)+")")
	}

	if !a.CreatedAt.IsZero() && !b.CreatedAt.IsZero() {
		switch days := daysApart(a.CreatedAt, b.CreatedAt); {
		case days < 7:
			reasons = append(reasons, "From the same week")
		case days < 30:
			reasons = append(reasons, "From the same month")
		}
	}

	if len(reasons) == 0 {
		return defaultReason
	}
	return strings.Join(reasons, reasonSeparator)
}

// ByTopics ranks conversations by the share of the requested topics they carry.
// Topic comparison is case-insensitive.
func (s *Service) ByTopics(topics []string, corpus []models.Conversation, limit int) []TopicMatch {
	if limit <= 0 {
		limit = DefaultLimit
	}
	wanted := uniqueLower(topics)
	out := []TopicMatch{}
	if len(wanted) == 0 {
		return out
	}

	for _, c := range corpus {
		if len(c.Topics) == 0 {
			continue
		}
		matching := intersect(wanted, uniqueLower(c.Topics))
		if len(matching) == 0 {
			continue
		}
		out = append(out, TopicMatch{
			ID:             c.ID,
			Title:          c.Title,
			Topics:         c.Topics,
			CreatedAt:      c.CreatedAt,
			MatchingTopics: matching,
			Relevance:      float64(len(matching)) / float64(len(wanted)),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Trending counts topics over conversations created in the last days days and
// returns the ten most frequent. Equal counts keep first-seen order.
func (s *Service) Trending(corpus []models.Conversation, days int) []TrendingTopic {
	if days <= 0 {
		days = DefaultWindowDays
	}
	cutoff := s.now().AddDate(0, 0, -days)

	counts := make(map[string]int)
	var order []string
	window := 0
	for _, c := range corpus {
		if c.CreatedAt.Before(cutoff) {
			continue
		}
		window++
		for _, t := range c.Topics {
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}

	out := []TrendingTopic{}
	if window == 0 {
		return out
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	for _, t := range order {
		if len(out) == maxTrending {
			break
		}
		out = append(out, TrendingTopic{
			Topic:             t,
			ConversationCount: counts[t],
			Percentage:        math.Round(float64(counts[t])/float64(window)*1000) / 10,
		})
	}
	return out
}

func samePolarity(a, b models.Sentiment) bool {
	return (a.IsPositive() && b.IsPositive()) || (a.IsNegative() && b.IsNegative())
}

// daysApart is the number of whole days between a and b.
func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d / (24 * time.Hour))
}

func setJaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, w := range a {
		setA[w] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, w := range b {
		setB[w] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inter := 0
	for w := range setB {
		if _, ok := setA[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(setA)+len(setB)-inter)
}

// intersect returns the members of a that also appear in b, in a's order, without repeats.
func intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, w := range b {
		inB[w] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, w := range a {
		if _, ok := inB[w]; !ok {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func uniqueLower(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	var out []string
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
