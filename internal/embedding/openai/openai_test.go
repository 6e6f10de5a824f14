package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
	Usage  struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Embed(t *testing.T) {
	expected := []float32{0.1, 0.2, 0.3}
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, []any{"neural networks"}, body["input"])

		resp := embeddingResponse{Object: "list", Model: "test-model"}
		resp.Data = []embeddingData{{Object: "embedding", Embedding: expected}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"})
	vec, err := c.Embed(context.Background(), "neural networks")
	require.NoError(t, err)
	assert.Equal(t, expected, vec)
}

func TestClient_BatchEmbedOrdersByIndex(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		resp := embeddingResponse{Object: "list"}
		resp.Data = []embeddingData{
			{Embedding: []float32{2}, Index: 1},
			{Embedding: []float32{1}, Index: 0},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	vecs, err := c.BatchEmbed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, vecs)
}

func TestClient_EmptyResponse(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(embeddingResponse{Object: "list"})
	})

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Embed(context.Background(), "q")
	assert.Error(t, err)
}

func TestClient_APIErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	})

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Embed(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), calls.Load())
}

func TestExtractDetail(t *testing.T) {
	assert.Equal(t, "bad input", extractDetail([]byte(`{"detail":"bad input"}`)))
	assert.Empty(t, extractDetail([]byte(`not json`)))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	assert.Equal(t, "text-embedding-3-small", string(c.model))
	assert.NotNil(t, c.logger)
}

func TestRequiresKey(t *testing.T) {
	tests := []struct {
		baseURL string
		want    bool
	}{
		{"", true},
		{"https://api.openai.com/v1", true},
		{"https://API.OpenAI.com/v1/", true},
		{"http://localhost:11434/v1", false},
		{"http://127.0.0.1:8000/v1", false},
		{"https://openai.com.example.net/v1", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, RequiresKey(tc.baseURL), tc.baseURL)
	}
}
