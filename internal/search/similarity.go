// Package search ranks past conversations against a free-text query.
package search

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"chatportal-backend/internal/llm"
)

// Tier names the scoring strategy that produced a set of scores.
type Tier string

const (
	TierRemoteEmbedding Tier = "remote-embedding"
	TierLocalEmbedding  Tier = "local-embedding"
	TierKeyword         Tier = "keyword"
	TierWordOverlap     Tier = "word-overlap"
)

const (
	// KeywordThreshold is the minimum relevance for TF-IDF and word-overlap scores.
	KeywordThreshold = 0.1
	// EmbeddingThreshold is the minimum relevance for embedding scores, which
	// run systematically higher than keyword scores.
	EmbeddingThreshold = 0.3
	// RemoteBatchLimit caps the candidates sent to the remote embedder per query.
	// Candidates past the cap score zero.
	RemoteBatchLimit = 20
	// MaxFeatures is the TF-IDF vocabulary budget.
	MaxFeatures = 100
)

// Threshold returns the relevance bar a score from this tier must exceed.
func (t Tier) Threshold() float64 {
	switch t {
	case TierRemoteEmbedding, TierLocalEmbedding:
		return EmbeddingThreshold
	default:
		return KeywordThreshold
	}
}

// Scores are per-candidate relevance values, aligned with the candidate order.
type Scores struct {
	Values []float64
	Tier   Tier
}

// Scorer scores candidate texts against a query, falling through
// remote embeddings, local embeddings, TF-IDF and word overlap.
// Either embedder may be nil.
type Scorer struct {
	remote  llm.Embedder
	local   llm.Embedder
	timeout time.Duration
	logger  *log.Logger
}

// NewScorer creates a Scorer. A zero timeout leaves the caller's context deadline in charge.
func NewScorer(remote, local llm.Embedder, timeout time.Duration, logger *log.Logger) *Scorer {
	if logger == nil {
		logger = log.Default()
	}
	return &Scorer{remote: remote, local: local, timeout: timeout, logger: logger}
}

// Score never fails. Every returned value is finite and within [0,1].
func (s *Scorer) Score(ctx context.Context, query string, candidates []string) Scores {
	if len(candidates) == 0 {
		return Scores{Values: []float64{}, Tier: TierKeyword}
	}

	if s.remote != nil {
		values, err := s.embeddingScores(ctx, s.remote, query, candidates, RemoteBatchLimit)
		if err == nil {
			return Scores{Values: values, Tier: TierRemoteEmbedding}
		}
		s.logger.Printf("WARN [Scorer] Remote embedding failed, trying next tier: %v", err)
	}

	if s.local != nil {
		values, err := s.embeddingScores(ctx, s.local, query, candidates, 0)
		if err == nil {
			return Scores{Values: values, Tier: TierLocalEmbedding}
		}
		s.logger.Printf("WARN [Scorer] Local embedding failed, trying next tier: %v", err)
	}

	values, err := KeywordScores(query, candidates)
	if err == nil {
		return Scores{Values: values, Tier: TierKeyword}
	}
	s.logger.Printf("[Scorer] TF-IDF unavailable (%v), using word overlap", err)
	return Scores{Values: OverlapScores(query, candidates), Tier: TierWordOverlap}
}

// embeddingScores embeds the query and up to limit candidates (0 means all).
func (s *Scorer) embeddingScores(ctx context.Context, e llm.Embedder, query string, candidates []string, limit int) ([]float64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	batch := candidates
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}

	queryVec, err := e.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	vectors, err := e.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embedding %d candidates: %w", len(batch), err)
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d candidates", len(vectors), len(batch))
	}

	values := make([]float64, len(candidates))
	for i, vec := range vectors {
		if len(vec) != len(queryVec) {
			return nil, fmt.Errorf("vector %d has dimension %d, query has %d", i, len(vec), len(queryVec))
		}
		values[i] = clampUnit(cosineSimilarity(queryVec, vec))
	}
	return values, nil
}

// KeywordScores is the TF-IDF cosine similarity of the query against each candidate.
func KeywordScores(query string, candidates []string) ([]float64, error) {
	docs := make([]string, 0, len(candidates)+1)
	docs = append(docs, query)
	docs = append(docs, candidates...)

	vectors, err := tfidfVectors(docs, MaxFeatures)
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(candidates))
	for i := range candidates {
		values[i] = clampUnit(sparseDot(vectors[0], vectors[i+1]))
	}
	return values, nil
}

// OverlapScores is the token Jaccard score of the query against each candidate.
func OverlapScores(query string, candidates []string) []float64 {
	values := make([]float64, len(candidates))
	for i, c := range candidates {
		values[i] = jaccard(query, c)
	}
	return values
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
