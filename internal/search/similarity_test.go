package search

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingEmbedder struct{ calls int }

func (f *failingEmbedder) Embed(context.Context, string) ([]float64, error) {
	f.calls++
	return nil, errors.New("dial tcp: i/o timeout")
}

func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float64, error) {
	f.calls++
	return nil, errors.New("dial tcp: i/o timeout")
}

// funcEmbedder maps each text to a vector with fn.
type funcEmbedder struct {
	fn      func(string) []float64
	batches [][]string
}

func (f *funcEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	return f.fn(text), nil
}

func (f *funcEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	f.batches = append(f.batches, texts)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = f.fn(t)
	}
	return out, nil
}

type shortEmbedder struct{ funcEmbedder }

func (s *shortEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out, _ := s.funcEmbedder.EmbedBatch(ctx, texts)
	return out[:len(out)-1], nil
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func constant(v ...float64) func(string) []float64 {
	return func(string) []float64 { return v }
}

func assertValid(t *testing.T, values []float64, n int) {
	t.Helper()
	require.Len(t, values, n)
	for i, v := range values {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "score %d not finite", i)
		assert.GreaterOrEqual(t, v, 0.0, "score %d", i)
		assert.LessOrEqual(t, v, 1.0, "score %d", i)
	}
}

func TestKeywordScoresRanksOverlap(t *testing.T) {
	values, err := KeywordScores("login bug fix", []string{
		"Fixing the login bug in the auth service",
		"Pricing strategy for enterprise customers",
	})
	require.NoError(t, err)
	assertValid(t, values, 2)
	assert.Greater(t, values[0], KeywordThreshold)
	assert.Zero(t, values[1])
}

func TestKeywordScoresEmptyVocabulary(t *testing.T) {
	_, err := KeywordScores("the and", []string{"a an", "of it"})
	assert.ErrorIs(t, err, ErrEmptyVocabulary)
}

func TestOverlapScores(t *testing.T) {
	values := OverlapScores("Hello World", []string{"hello world", "hello there", ""})
	assert.Equal(t, []float64{1, 1.0 / 3.0, 0}, values)

	assert.Equal(t, []float64{0}, OverlapScores("", []string{""}))
}

func TestScoreFallsBackToWordOverlap(t *testing.T) {
	s := NewScorer(nil, nil, 0, quietLogger())
	res := s.Score(context.Background(), "the and", []string{"the and", "of it"})

	assert.Equal(t, TierWordOverlap, res.Tier)
	assertValid(t, res.Values, 2)
	assert.Equal(t, 1.0, res.Values[0])
	assert.Zero(t, res.Values[1])
}

func TestScoreRemoteErrorUsesLocal(t *testing.T) {
	remote := &failingEmbedder{}
	local := &funcEmbedder{fn: constant(1, 0)}

	res := NewScorer(remote, local, 0, quietLogger()).Score(context.Background(), "q", []string{"a", "b"})

	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, TierLocalEmbedding, res.Tier)
	assert.Equal(t, []float64{1, 1}, res.Values)
}

func TestScoreBothEmbeddersFailUsesKeyword(t *testing.T) {
	res := NewScorer(&failingEmbedder{}, &failingEmbedder{}, 0, quietLogger()).
		Score(context.Background(), "deploy pipeline", []string{"deploy the pipeline today", "lunch plans"})

	assert.Equal(t, TierKeyword, res.Tier)
	assertValid(t, res.Values, 2)
	assert.Greater(t, res.Values[0], res.Values[1])
}

func TestScoreRemoteBatchCap(t *testing.T) {
	remote := &funcEmbedder{fn: constant(0.5, 0.5)}
	candidates := make([]string, RemoteBatchLimit+5)
	for i := range candidates {
		candidates[i] = "candidate"
	}

	res := NewScorer(remote, nil, 0, quietLogger()).Score(context.Background(), "q", candidates)

	assert.Equal(t, TierRemoteEmbedding, res.Tier)
	assertValid(t, res.Values, len(candidates))
	require.Len(t, remote.batches, 1)
	assert.Len(t, remote.batches[0], RemoteBatchLimit)
	for i, v := range res.Values {
		if i < RemoteBatchLimit {
			assert.InDelta(t, 1.0, v, 1e-9)
		} else {
			assert.Zero(t, v)
		}
	}
}

func TestScoreLocalHasNoBatchCap(t *testing.T) {
	local := &funcEmbedder{fn: constant(1, 1)}
	candidates := make([]string, RemoteBatchLimit+3)

	res := NewScorer(nil, local, 0, quietLogger()).Score(context.Background(), "q", candidates)

	assert.Equal(t, TierLocalEmbedding, res.Tier)
	assert.Len(t, local.batches[0], len(candidates))
	assert.InDelta(t, 1.0, res.Values[len(candidates)-1], 1e-9)
}

func TestScoreMismatchedBatchDropsTier(t *testing.T) {
	remote := &shortEmbedder{funcEmbedder{fn: constant(1, 0)}}
	local := &funcEmbedder{fn: constant(0, 1)}

	res := NewScorer(remote, local, 0, quietLogger()).Score(context.Background(), "q", []string{"a", "b"})
	assert.Equal(t, TierLocalEmbedding, res.Tier)
}

func TestScoreClampsNegativeCosine(t *testing.T) {
	local := &funcEmbedder{fn: func(text string) []float64 {
		if text == "q" {
			return []float64{1, 0}
		}
		return []float64{-1, 0}
	}}

	res := NewScorer(nil, local, 0, quietLogger()).Score(context.Background(), "q", []string{"opposite"})
	assert.Equal(t, []float64{0}, res.Values)
}

func TestScoreNoCandidates(t *testing.T) {
	res := NewScorer(&failingEmbedder{}, nil, 0, quietLogger()).Score(context.Background(), "q", nil)
	assert.NotNil(t, res.Values)
	assert.Empty(t, res.Values)
}

func TestTierThreshold(t *testing.T) {
	assert.Equal(t, 0.3, TierRemoteEmbedding.Threshold())
	assert.Equal(t, 0.3, TierLocalEmbedding.Threshold())
	assert.Equal(t, 0.1, TierKeyword.Threshold())
	assert.Equal(t, 0.1, TierWordOverlap.Threshold())
}
