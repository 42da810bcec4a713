package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) (*VectorStore, *MockEmbeddingEngine) {
	t.Helper()
	engine := &MockEmbeddingEngine{}
	vs, err := NewVectorStore(context.Background(), openTestDB(t), engine)
	require.NoError(t, err)
	return vs, engine
}

func seedChunks() []Chunk {
	return []Chunk{
		{Content: "JWT auth middleware", Metadata: Metadata{Type: ChunkCode, FilePath: "src/auth.ts", Repo: "acme/api"}},
		{Content: "Postgres database pool", Metadata: Metadata{Type: ChunkCode, FilePath: "src/db.ts", Repo: "acme/api"}},
		{Content: "Auth is handled by Clerk", Metadata: Metadata{Type: ChunkDoc, FilePath: "README.md", Repo: "acme/api"}},
		{Content: "Billing via Stripe", Metadata: Metadata{Type: ChunkDoc, FilePath: "README.md", Repo: "acme/web"}},
	}
}

func TestAddDocuments_EmptyIsNoop(t *testing.T) {
	vs, engine := newTestVectorStore(t)
	engine.EmbedBatchFunc = func(context.Context, []string) ([][]float32, error) {
		t.Fatal("engine must not be called for empty input")
		return nil, nil
	}
	require.NoError(t, vs.AddDocuments(context.Background(), nil))

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddDocuments_Deduplicates(t *testing.T) {
	ctx := context.Background()
	vs, _ := newTestVectorStore(t)

	require.NoError(t, vs.AddDocuments(ctx, seedChunks()))
	require.NoError(t, vs.AddDocuments(ctx, seedChunks()))

	n, err := vs.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "identical content and metadata is stored once")

	// Same content under a different path is a distinct chunk.
	dup := seedChunks()[0]
	dup.Metadata.FilePath = "src/legacy/auth.ts"
	require.NoError(t, vs.AddDocuments(ctx, []Chunk{dup}))
	n, _ = vs.Count(ctx)
	assert.Equal(t, 5, n)
}

func TestAddDocuments_EmbedError(t *testing.T) {
	vs, engine := newTestVectorStore(t)
	engine.EmbedBatchFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}
	err := vs.AddDocuments(context.Background(), seedChunks())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAddDocuments_VectorCountMismatch(t *testing.T) {
	vs, engine := newTestVectorStore(t)
	engine.EmbedBatchFunc = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1, 0, 0, 0}}, nil
	}
	assert.Error(t, vs.AddDocuments(context.Background(), seedChunks()))
}

func TestSimilaritySearch(t *testing.T) {
	ctx := context.Background()
	vs, _ := newTestVectorStore(t)
	require.NoError(t, vs.AddDocuments(ctx, seedChunks()))

	t.Run("OrderedByDistance", func(t *testing.T) {
		got, err := vs.SimilaritySearch(ctx, "rewrite auth", 2, nil)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, c := range got {
			assert.Contains(t, c.Content, "uth")
		}
	})

	t.Run("FilterByType", func(t *testing.T) {
		got, err := vs.SimilaritySearch(ctx, "auth", 3, &Filter{Type: ChunkDoc})
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, "Auth is handled by Clerk", got[0].Content)
		for _, c := range got {
			assert.Equal(t, ChunkDoc, c.Metadata.Type)
		}
	})

	t.Run("FilterByRepo", func(t *testing.T) {
		got, err := vs.SimilaritySearch(ctx, "billing", 10, &Filter{Repo: "acme/web"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, Metadata{Type: ChunkDoc, FilePath: "README.md", Repo: "acme/web"}, got[0].Metadata)
	})

	t.Run("LimitK", func(t *testing.T) {
		got, err := vs.SimilaritySearch(ctx, "anything", 3, nil)
		require.NoError(t, err)
		assert.Len(t, got, 3)

		got, err = vs.SimilaritySearch(ctx, "anything", 0, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("DefaultK", func(t *testing.T) {
		got, err := vs.Search(ctx, "anything", nil)
		require.NoError(t, err)
		assert.Len(t, got, 4, "fewer chunks than DefaultSearchK")
	})
}

func TestSimilaritySearch_SkipsOtherDimensions(t *testing.T) {
	ctx := context.Background()
	vs, engine := newTestVectorStore(t)
	require.NoError(t, vs.AddDocuments(ctx, seedChunks()))

	engine.EmbedFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	got, err := vs.SimilaritySearch(ctx, "auth", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHasRepoAndRepos(t *testing.T) {
	ctx := context.Background()
	vs, _ := newTestVectorStore(t)

	has, err := vs.HasRepo(ctx, "acme/api")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, vs.AddDocuments(ctx, seedChunks()))

	has, err = vs.HasRepo(ctx, "acme/api")
	require.NoError(t, err)
	assert.True(t, has)

	repos, err := vs.Repos(ctx)
	require.NoError(t, err)
	assert.Equal(t, []RepoStats{
		{Repo: "acme/api", Code: 2, Doc: 1},
		{Repo: "acme/web", Doc: 1},
	}, repos)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := decodeEmbedding(encodeEmbedding(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestContentHash(t *testing.T) {
	assert.Len(t, ContentHash("x"), 64)
	assert.Equal(t, ContentHash("same"), ContentHash("same"))
	assert.NotEqual(t, ContentHash("a"), ContentHash("b"))
}
