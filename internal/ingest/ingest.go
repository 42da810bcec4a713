// Package ingest pulls a repository's source and README through the content
// API, chunks them, and stores them in the vector store exactly once.
package ingest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"machgate/internal/github"
	"machgate/internal/logging"
	"machgate/internal/store"
)

// RepoSource is the repository content API.
type RepoSource interface {
	GetTree(ctx context.Context, repo github.Repo) ([]github.TreeEntry, error)
	GetFileContent(ctx context.Context, repo github.Repo, path string) ([]byte, error)
	GetReadme(ctx context.Context, repo github.Repo) ([]byte, error)
}

// ChunkStore is the subset of the vector store ingestion writes to.
type ChunkStore interface {
	AddDocuments(ctx context.Context, chunks []store.Chunk) error
	HasRepo(ctx context.Context, repo string) (bool, error)
}

// Options bounds an ingestion run.
type Options struct {
	MaxFiles     int // files fetched per repo
	BatchSize    int // concurrent fetches per batch
	MaxFileBytes int // files at or above this size are skipped
	ChunkSize    int // characters per chunk
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{MaxFiles: 50, BatchSize: 5, MaxFileBytes: 100 * 1024, ChunkSize: DefaultChunkSize}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxFiles <= 0 {
		o.MaxFiles = d.MaxFiles
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = d.MaxFileBytes
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	return o
}

// Result summarises one IngestGitHubRepo call.
type Result struct {
	Repo        string `json:"repo"`
	Skipped     bool   `json:"skipped,omitempty"` // already ingested; nothing fetched
	Files       int    `json:"files"`             // files fetched successfully
	FailedFiles int    `json:"failedFiles,omitempty"`
	Readme      bool   `json:"readme"`
	Chunks      int    `json:"chunks"`
}

// Ingester coordinates repository ingestion.
type Ingester struct {
	source RepoSource
	store  ChunkStore
	opts   Options
	group  singleflight.Group
}

// NewIngester creates an Ingester. Zero-valued options take defaults.
func NewIngester(source RepoSource, chunks ChunkStore, opts Options) *Ingester {
	return &Ingester{source: source, store: chunks, opts: opts.withDefaults()}
}

// IngestGitHubRepo ingests repoURL unless it is already stored. Concurrent
// calls for the same repository share a single run; a caller whose ctx ends
// returns early without cancelling the run for the others.
func (in *Ingester) IngestGitHubRepo(ctx context.Context, repoURL string) (Result, error) {
	repo, err := github.ParseRepo(repoURL)
	if err != nil {
		return Result{}, err
	}
	key := repo.String()

	if err := ctx.Err(); err != nil {
		return Result{Repo: key}, err
	}

	// The flight is shared, so it must outlive any single caller's context.
	flight := in.group.DoChan(key, func() (interface{}, error) {
		return in.ingest(context.WithoutCancel(ctx), repo)
	})
	select {
	case <-ctx.Done():
		return Result{Repo: key}, ctx.Err()
	case r := <-flight:
		if r.Shared {
			logging.IngestDebug("Ingestion of %s shared with a concurrent caller", key)
		}
		if r.Err != nil {
			return Result{Repo: key}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (in *Ingester) ingest(ctx context.Context, repo github.Repo) (Result, error) {
	key := repo.String()
	res := Result{Repo: key}

	timer := logging.StartTimer(logging.CategoryIngest, "IngestGitHubRepo "+key)
	defer timer.Stop()

	has, err := in.store.HasRepo(ctx, key)
	if err != nil {
		// The unique chunk index still prevents duplicate rows.
		logging.IngestWarn("HasRepo(%s) failed, ingesting anyway: %v", key, err)
	}
	if has {
		logging.Ingest("Repository %s already ingested, skipping", key)
		res.Skipped = true
		return res, nil
	}

	tree, err := in.source.GetTree(ctx, repo)
	if err != nil {
		return res, fmt.Errorf("failed to list %s: %w", key, err)
	}
	paths := SelectFiles(tree, in.opts.MaxFileBytes, in.opts.MaxFiles)
	logging.Ingest("Ingesting %s: %d tree entries, %d files selected", key, len(tree), len(paths))

	contents, err := in.fetchFiles(ctx, repo, paths)
	if err != nil {
		return res, err
	}

	var chunks []store.Chunk
	for i, p := range paths {
		if contents[i] == nil {
			res.FailedFiles++
			continue
		}
		res.Files++
		for _, c := range ChunkText(string(contents[i]), in.opts.ChunkSize) {
			chunks = append(chunks, store.Chunk{
				Content:  c,
				Metadata: store.Metadata{Type: store.ChunkCode, FilePath: p, Repo: key},
			})
		}
	}

	readme, err := in.source.GetReadme(ctx, repo)
	if err != nil {
		logging.IngestWarn("README unavailable for %s: %v", key, err)
	} else if len(readme) > 0 {
		res.Readme = true
		for _, c := range ChunkText(StripReadmeHTML(string(readme)), in.opts.ChunkSize) {
			chunks = append(chunks, store.Chunk{
				Content:  c,
				Metadata: store.Metadata{Type: store.ChunkDoc, FilePath: "README.md", Repo: key},
			})
		}
	}

	if len(chunks) == 0 {
		logging.IngestWarn("No content ingested for %s", key)
		return res, nil
	}
	if err := in.store.AddDocuments(ctx, chunks); err != nil {
		return res, fmt.Errorf("failed to store chunks for %s: %w", key, err)
	}
	res.Chunks = len(chunks)

	logging.Ingest("Ingested %s: %d files (%d failed), readme=%v, %d chunks",
		key, res.Files, res.FailedFiles, res.Readme, res.Chunks)
	return res, nil
}

// fetchFiles fetches paths in batches of BatchSize concurrent requests. Each
// batch completes before the next starts. A failed file leaves a nil slot.
func (in *Ingester) fetchFiles(ctx context.Context, repo github.Repo, paths []string) ([][]byte, error) {
	contents := make([][]byte, len(paths))

	for start := 0; start < len(paths); start += in.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingestion of %s cancelled: %w", repo, err)
		}
		end := min(start+in.opts.BatchSize, len(paths))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				body, err := in.source.GetFileContent(ctx, repo, paths[i])
				if err != nil {
					logging.IngestWarn("Skipping %s in %s: %v", paths[i], repo, err)
					return nil
				}
				if body == nil {
					body = []byte{}
				}
				contents[i] = body
				return nil
			})
		}
		_ = g.Wait()
		logging.IngestDebug("Fetched batch %d-%d of %d for %s", start, end, len(paths), repo)
	}
	return contents, nil
}
