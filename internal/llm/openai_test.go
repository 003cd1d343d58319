package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		assert.Equal(t, 200, req.MaxTokens)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  a summary  "}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "sk-test", "gpt-test", "", time.Second)
	out, err := Prompt(context.Background(), client, "sys", "user", 200, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "a summary", out)
}

func TestOpenAICompleteAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "sk-test", "", "", time.Second)
	_, err := client.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "sk-test", "", "", time.Second)
	_, err := client.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIEmbedBatchOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOpenAIEmbedModel, req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		fmt.Fprint(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "sk-test", "", "", time.Second)
	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)
}

func TestOpenAIEmbedBatchCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,0]}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "sk-test", "", "", time.Second)
	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestOpenAIHealthyRequiresKey(t *testing.T) {
	client := NewOpenAIClient("http://127.0.0.1:1", "", "", "", time.Second)
	assert.Error(t, client.Healthy(context.Background()))
}

func TestOpenAIHealthyProbesModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "sk-test", "", "", time.Second)
	assert.NoError(t, client.Healthy(context.Background()))
}
