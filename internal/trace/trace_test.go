package trace

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"machgate/internal/embedding"
	"machgate/internal/oracle"
	"machgate/internal/store"
)

func TestMain(m *testing.M) {
	// opencensus (linked through genai) starts a worker in init that never exits.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// MockSearcher implements Searcher for testing.
type MockSearcher struct {
	SimilaritySearchFunc func(ctx context.Context, query string, k int, filter *store.Filter) ([]store.Chunk, error)
	CountFunc            func(ctx context.Context) (int, error)
}

func (m *MockSearcher) SimilaritySearch(ctx context.Context, query string, k int, filter *store.Filter) ([]store.Chunk, error) {
	if m.SimilaritySearchFunc != nil {
		return m.SimilaritySearchFunc(ctx, query, k, filter)
	}
	return nil, nil
}

func (m *MockSearcher) Count(ctx context.Context) (int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	return 1, nil
}

var authChunks = map[store.ChunkType][]store.Chunk{
	store.ChunkCode: {{
		Content:  "import { clerkMiddleware } from '@clerk/nextjs/server'\nexport default clerkMiddleware()",
		Metadata: store.Metadata{Type: store.ChunkCode, FilePath: "src/middleware.ts", Repo: "acme/api"},
	}},
	store.ChunkDoc: {{
		Content:  "Authentication is handled by Clerk. Do not add custom session handling.",
		Metadata: store.Metadata{Type: store.ChunkDoc, FilePath: "README.md", Repo: "acme/api"},
	}},
}

func authSearcher() *MockSearcher {
	return &MockSearcher{
		SimilaritySearchFunc: func(_ context.Context, _ string, _ int, f *store.Filter) ([]store.Chunk, error) {
			return authChunks[f.Type], nil
		},
	}
}

// scriptedOracle answers by call purpose.
func scriptedOracle(extract, audit string, auditErr error) oracle.Oracle {
	return oracle.Func(func(ctx context.Context, _ []oracle.Message) (oracle.Response, error) {
		switch oracle.PurposeFrom(ctx) {
		case PurposeEntityExtraction:
			return oracle.Response{Content: extract}, nil
		case PurposeCollisionAudit:
			return oracle.Response{Content: audit}, auditErr
		}
		return oracle.Response{}, errors.New("unexpected purpose")
	})
}

const collisionReply = "```json\n" + `{"status":"COLLISION","source":"src/middleware.ts","snippet":"clerkMiddleware()","reason":"ARCHITECTURAL DRIFT: auth is Clerk, objective adds Auth0"}` + "\n```"

func TestTraceIntent_Collision(t *testing.T) {
	a := NewAuditor(scriptedOracle(`["Auth0","login"]`, collisionReply, nil), authSearcher(), nil, Options{})

	got := a.TraceIntent(context.Background(), "Replace login with Auth0 sessions")
	want := Result{
		Verdict: VerdictCollision,
		Source:  "src/middleware.ts",
		Snippet: "clerkMiddleware()",
		Reason:  "ARCHITECTURAL DRIFT: auth is Clerk, objective adds Auth0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("TraceIntent mismatch (-want +got):\n%s", diff)
	}
}

func TestTraceIntent_Clean(t *testing.T) {
	a := NewAuditor(scriptedOracle(`["billing"]`, `{"status":"CLEAN"}`, nil), authSearcher(), nil, Options{})
	assert.Equal(t, Clean(), a.TraceIntent(context.Background(), "Add a billing page"))
}

func TestTraceIntent_PassThrough(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, Clean(), NewAuditor(nil, authSearcher(), nil, Options{}).TraceIntent(ctx, "x"))
	assert.Equal(t, Clean(), NewAuditor(scriptedOracle("", collisionReply, nil), nil, nil, Options{}).TraceIntent(ctx, "x"))

	var calls atomic.Int32
	counting := oracle.Func(func(context.Context, []oracle.Message) (oracle.Response, error) {
		calls.Add(1)
		return oracle.Response{Content: collisionReply}, nil
	})
	empty := &MockSearcher{CountFunc: func(context.Context) (int, error) { return 0, nil }}
	assert.Equal(t, Clean(), NewAuditor(counting, empty, nil, Options{}).TraceIntent(ctx, "x"))

	countErr := &MockSearcher{CountFunc: func(context.Context) (int, error) { return 0, errors.New("locked") }}
	assert.Equal(t, Clean(), NewAuditor(counting, countErr, nil, Options{}).TraceIntent(ctx, "x"))
	assert.Zero(t, calls.Load(), "oracle must not be consulted without context")
}

func TestTraceIntent_OracleErrorIsClean(t *testing.T) {
	a := NewAuditor(scriptedOracle(`["Auth0"]`, "", errors.New("503 overloaded")), authSearcher(), nil, Options{})
	assert.Equal(t, Clean(), a.TraceIntent(context.Background(), "Replace login with Auth0"))
}

func TestTraceIntent_SearchErrorIsClean(t *testing.T) {
	s := &MockSearcher{SimilaritySearchFunc: func(_ context.Context, _ string, _ int, f *store.Filter) ([]store.Chunk, error) {
		if f.Type == store.ChunkDoc {
			return nil, errors.New("disk I/O error")
		}
		return authChunks[f.Type], nil
	}}
	a := NewAuditor(scriptedOracle(`[]`, collisionReply, nil), s, nil, Options{})
	assert.Equal(t, Clean(), a.TraceIntent(context.Background(), "Replace login with Auth0"))
}

func TestTraceIntent_PanicsAreClean(t *testing.T) {
	panicking := oracle.Func(func(context.Context, []oracle.Message) (oracle.Response, error) {
		panic("nil map write")
	})
	assert.Equal(t, Clean(), NewAuditor(panicking, authSearcher(), nil, Options{}).TraceIntent(context.Background(), "x"))

	s := &MockSearcher{SimilaritySearchFunc: func(context.Context, string, int, *store.Filter) ([]store.Chunk, error) {
		panic("boom")
	}}
	a := NewAuditor(scriptedOracle(`[]`, collisionReply, nil), s, nil, Options{})
	assert.Equal(t, Clean(), a.TraceIntent(context.Background(), "x"))
}

func TestTraceIntent_NoFragmentsSkipsAdjudication(t *testing.T) {
	var audited atomic.Bool
	o := oracle.Func(func(ctx context.Context, _ []oracle.Message) (oracle.Response, error) {
		if oracle.PurposeFrom(ctx) == PurposeCollisionAudit {
			audited.Store(true)
		}
		return oracle.Response{Content: `["x"]`}, nil
	})
	a := NewAuditor(o, &MockSearcher{}, nil, Options{})
	assert.Equal(t, Clean(), a.TraceIntent(context.Background(), "x"))
	assert.False(t, audited.Load())
}

type searchCall struct {
	query  string
	k      int
	filter store.Filter
}

func TestTraceRepo_QueryAndFilters(t *testing.T) {
	calls := make(chan searchCall, 2)
	s := &MockSearcher{SimilaritySearchFunc: func(_ context.Context, q string, k int, f *store.Filter) ([]store.Chunk, error) {
		calls <- searchCall{query: q, k: k, filter: *f}
		return nil, nil
	}}

	a := NewAuditor(scriptedOracle(`["Auth0", "sessions"]`, "", nil), s, nil, Options{CodeK: 2})
	a.TraceRepo(context.Background(), "Add Auth0", "acme/api")
	close(calls)

	var got []searchCall
	for c := range calls {
		got = append(got, c)
	}
	assert.ElementsMatch(t, []searchCall{
		{query: "Add Auth0 Auth0 sessions", k: 2, filter: store.Filter{Type: store.ChunkCode, Repo: "acme/api"}},
		{query: "Add Auth0 Auth0 sessions", k: 3, filter: store.Filter{Type: store.ChunkDoc, Repo: "acme/api"}},
	}, got)
}

func TestTraceIntent_EntityFallbackQuery(t *testing.T) {
	var query atomic.Value
	s := &MockSearcher{SimilaritySearchFunc: func(_ context.Context, q string, _ int, _ *store.Filter) ([]store.Chunk, error) {
		query.Store(q)
		return nil, nil
	}}
	a := NewAuditor(scriptedOracle("I think the entities are auth stuff", "", nil), s, nil, Options{})
	a.TraceIntent(context.Background(), "Add Stripe webhooks to the API")
	assert.Equal(t, "Add Stripe webhooks to the API Stripe webhooks", query.Load())
}

func TestTraceIntent_AdjudicationPromptLabelsFragments(t *testing.T) {
	var prompt atomic.Value
	o := oracle.Func(func(ctx context.Context, msgs []oracle.Message) (oracle.Response, error) {
		if oracle.PurposeFrom(ctx) == PurposeCollisionAudit {
			require.Len(t, msgs, 2)
			assert.Equal(t, oracle.RoleSystem, msgs[0].Role)
			prompt.Store(msgs[1].Content)
		}
		return oracle.Response{Content: `[]`}, nil
	})
	NewAuditor(o, authSearcher(), nil, Options{}).TraceIntent(context.Background(), "Swap auth to Auth0")

	got := prompt.Load().(string)
	assert.Contains(t, got, "Swap auth to Auth0")
	assert.Contains(t, got, "--- [CODE] src/middleware.ts ---")
	assert.Contains(t, got, "--- [DOC] README.md ---")
	assert.Less(t, strings.Index(got, "[CODE]"), strings.Index(got, "[DOC]"))
}

func TestTraceIntent_EmptyVectorStore(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer db.Close()

	vs, err := store.NewVectorStore(context.Background(), db, embedding.NewHashEngine(64))
	require.NoError(t, err)

	var calls atomic.Int32
	o := oracle.Func(func(context.Context, []oracle.Message) (oracle.Response, error) {
		calls.Add(1)
		return oracle.Response{Content: collisionReply}, nil
	})
	assert.Equal(t, Clean(), NewAuditor(o, vs, nil, Options{}).TraceIntent(context.Background(), "Add Auth0"))
	assert.Zero(t, calls.Load())
}

func TestTraceIntent_RealStoreCollision(t *testing.T) {
	ctx := context.Background()
	db, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	defer db.Close()

	vs, err := store.NewVectorStore(ctx, db, embedding.NewHashEngine(128))
	require.NoError(t, err)
	require.NoError(t, vs.AddDocuments(ctx, append(authChunks[store.ChunkCode], authChunks[store.ChunkDoc]...)))

	a := NewAuditor(scriptedOracle(`["Clerk"]`, collisionReply, nil), vs, nil, Options{})
	assert.True(t, a.TraceRepo(ctx, "Replace Clerk auth with Auth0", "acme/api").IsCollision())
	assert.False(t, a.TraceRepo(ctx, "Replace Clerk auth with Auth0", "other/repo").IsCollision(),
		"no fragments for another repo")
}
