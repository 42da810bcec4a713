package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/zeebo/blake3"

	"machgate/internal/embedding"
	"machgate/internal/logging"
)

// =============================================================================
// CHUNK MODEL
// =============================================================================

// ChunkType classifies where a chunk came from.
type ChunkType string

const (
	ChunkCode   ChunkType = "code"
	ChunkDoc    ChunkType = "doc"
	ChunkTribal ChunkType = "tribal"
)

// Metadata describes a chunk's origin.
type Metadata struct {
	Type     ChunkType `json:"type"`
	FilePath string    `json:"filePath,omitempty"`
	Repo     string    `json:"repo,omitempty"`
}

// Chunk is one retrievable unit of repository text. Chunks are immutable once
// embedded; identity is content plus metadata.
type Chunk struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Filter narrows a similarity search. Empty fields match everything.
type Filter struct {
	Type ChunkType
	Repo string
}

// DefaultSearchK is the result count used by Search.
const DefaultSearchK = 6

// =============================================================================
// VECTOR STORE
// =============================================================================

// VectorStore embeds chunks and answers cosine-similarity queries over them.
type VectorStore struct {
	db     *sql.DB
	engine embedding.Engine
}

var chunkSchema = []string{
	`CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		type TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		repo TEXT NOT NULL DEFAULT '',
		embedding BLOB NOT NULL,
		embedding_model TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_identity ON chunks(content_hash, type, file_path, repo)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_repo ON chunks(repo)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_type ON chunks(type)`,
}

// NewVectorStore creates the chunk schema on db and returns a store backed by engine.
func NewVectorStore(ctx context.Context, db *sql.DB, engine embedding.Engine) (*VectorStore, error) {
	if db == nil || engine == nil {
		return nil, fmt.Errorf("vector store requires a database and an embedding engine")
	}
	if err := migrate(ctx, db, chunkSchema...); err != nil {
		return nil, fmt.Errorf("failed to initialize chunk schema: %w", err)
	}
	logging.Store("VectorStore ready (engine=%s, dims=%d, distance=%s)", engine.Name(), engine.Dimensions(), distanceFunc)
	return &VectorStore{db: db, engine: engine}, nil
}

// AddDocuments embeds chunks in one batch and persists them. Chunks already
// stored with the same content and metadata are skipped. Empty input is a no-op.
func (s *VectorStore) AddDocuments(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	timer := logging.StartTimer(logging.CategoryStore, "VectorStore.AddDocuments")
	defer timer.Stop()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedding engine returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO chunks
		(content, content_hash, type, file_path, repo, embedding, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	model := s.engine.Name()
	for i, c := range chunks {
		res, err := stmt.ExecContext(ctx,
			c.Content, ContentHash(c.Content), string(c.Metadata.Type),
			c.Metadata.FilePath, c.Metadata.Repo, encodeEmbedding(vecs[i]), model)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	logging.Store("Stored %d chunks (%d duplicates skipped)", inserted, len(chunks)-inserted)
	return nil
}

// SimilaritySearch returns at most k chunks ordered by ascending cosine
// distance to query, restricted by filter when non-nil.
func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, k int, filter *Filter) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategoryStore, "VectorStore.SimilaritySearch")
	defer timer.Stop()

	qvec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var f Filter
	if filter != nil {
		f = *filter
	}

	// Rows embedded with a different dimensionality are skipped rather than
	// failing the distance function.
	q := fmt.Sprintf(`SELECT content, type, file_path, repo, %s(embedding, ?) AS distance
		FROM chunks
		WHERE length(embedding) = ?
		  AND (? = '' OR type = ?)
		  AND (? = '' OR repo = ?)
		ORDER BY distance ASC, id ASC
		LIMIT ?`, distanceFunc)

	rows, err := s.db.QueryContext(ctx, q,
		encodeEmbedding(qvec), len(qvec)*4,
		string(f.Type), string(f.Type),
		f.Repo, f.Repo,
		k)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var typ string
		var distance float64
		if err := rows.Scan(&c.Content, &typ, &c.Metadata.FilePath, &c.Metadata.Repo, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Metadata.Type = ChunkType(typ)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	logging.StoreDebug("SimilaritySearch k=%d type=%q repo=%q returned %d", k, f.Type, f.Repo, len(out))
	return out, nil
}

// Search is SimilaritySearch with DefaultSearchK.
func (s *VectorStore) Search(ctx context.Context, query string, filter *Filter) ([]Chunk, error) {
	return s.SimilaritySearch(ctx, query, DefaultSearchK, filter)
}

// HasRepo reports whether any chunk from repo is stored.
func (s *VectorStore) HasRepo(ctx context.Context, repo string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chunks WHERE repo = ? LIMIT 1`, repo).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check repo: %w", err)
	}
	return true, nil
}

// Count returns the number of stored chunks.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// RepoStats summarises one ingested repository.
type RepoStats struct {
	Repo   string
	Code   int
	Doc    int
	Tribal int
}

// Repos lists ingested repositories with chunk counts per type.
func (s *VectorStore) Repos(ctx context.Context) ([]RepoStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT repo,
			SUM(CASE WHEN type = 'code' THEN 1 ELSE 0 END),
			SUM(CASE WHEN type = 'doc' THEN 1 ELSE 0 END),
			SUM(CASE WHEN type = 'tribal' THEN 1 ELSE 0 END)
		FROM chunks GROUP BY repo ORDER BY repo`)
	if err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}
	defer rows.Close()

	var out []RepoStats
	for rows.Next() {
		var r RepoStats
		if err := rows.Scan(&r.Repo, &r.Code, &r.Doc, &r.Tribal); err != nil {
			return nil, fmt.Errorf("failed to scan repo stats: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// ENCODING
// =============================================================================

// ContentHash returns the hex BLAKE3 digest used for chunk identity.
func ContentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// encodeEmbedding packs v as little-endian float32, the sqlite-vec blob layout.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}
