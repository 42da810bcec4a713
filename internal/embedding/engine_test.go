package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestHashEngine(t *testing.T) {
	ctx := context.Background()
	e := NewHashEngine(0)
	assert.Equal(t, 256, e.Dimensions())
	assert.Equal(t, "hash:blake3-256", e.Name())

	auth, err := e.Embed(ctx, "JWT session auth middleware in src/auth.ts")
	require.NoError(t, err)
	require.Len(t, auth, 256)

	var norm float64
	for _, x := range auth {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)

	again, err := e.Embed(ctx, "JWT session auth middleware in src/auth.ts")
	require.NoError(t, err)
	assert.Equal(t, auth, again, "hash embeddings are deterministic")

	related, _ := e.Embed(ctx, "replace the JWT auth middleware")
	unrelated, _ := e.Embed(ctx, "chocolate cake recipe with berries")
	simRelated, _ := CosineSimilarity(auth, related)
	simUnrelated, _ := CosineSimilarity(auth, unrelated)
	assert.Greater(t, simRelated, simUnrelated)

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 256)
}

func TestHashEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashEngine(16).EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine(t *testing.T) {
	ctx := context.Background()

	e, err := NewEngine(ctx, Config{Provider: "hash", Dimensions: 64})
	require.NoError(t, err)
	assert.Equal(t, 64, e.Dimensions())

	e, err = NewEngine(ctx, Config{Provider: "ollama", Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Name())

	_, err = NewEngine(ctx, Config{Provider: "genai"})
	assert.Error(t, err, "genai requires an API key")

	_, err = NewEngine(ctx, Config{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestOllamaEngine_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "embeddinggemma", req.Model)

		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOllamaEngine(srv.URL+"/", "", 2)
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)

	vec, err := e.Embed(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
}

func TestOllamaEngine_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e, _ := NewOllamaEngine(srv.URL, "missing", 0)
	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
