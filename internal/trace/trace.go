// Package trace implements the collision auditor: it retrieves repository
// fragments related to an objective and asks the oracle whether the
// objective contradicts the existing system.
//
// The auditor is fail-open. TraceIntent never returns an error and never
// panics; every failure degrades to CLEAN.
package trace

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"machgate/internal/logging"
	"machgate/internal/oracle"
	"machgate/internal/prompts"
	"machgate/internal/store"
)

// Verdict is the auditor's decision.
type Verdict string

const (
	VerdictClean     Verdict = "CLEAN"
	VerdictCollision Verdict = "COLLISION"
)

// Result is CLEAN with no payload, or COLLISION with the evidence.
type Result struct {
	Verdict Verdict `json:"verdict"`
	Source  string  `json:"source,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Clean returns the CLEAN result.
func Clean() Result { return Result{Verdict: VerdictClean} }

// IsCollision reports whether r blocks the mission.
func (r Result) IsCollision() bool { return r.Verdict == VerdictCollision }

// Oracle call purposes recorded in the call journal.
const (
	PurposeEntityExtraction = "entity_extraction"
	PurposeCollisionAudit   = "collision_audit"
)

// Searcher is the vector store surface the auditor reads.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, k int, filter *store.Filter) ([]store.Chunk, error)
	Count(ctx context.Context) (int, error)
}

// Options tunes retrieval.
type Options struct {
	CodeK       int
	DocK        int
	MaxEntities int
}

// DefaultOptions returns k=3 per chunk type and at most 10 entities.
func DefaultOptions() Options {
	return Options{CodeK: 3, DocK: 3, MaxEntities: 10}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.CodeK <= 0 {
		o.CodeK = d.CodeK
	}
	if o.DocK <= 0 {
		o.DocK = d.DocK
	}
	if o.MaxEntities <= 0 {
		o.MaxEntities = d.MaxEntities
	}
	return o
}

// Auditor runs Mach-Trace collision audits.
type Auditor struct {
	oracle  oracle.Oracle
	search  Searcher
	prompts *prompts.Set
	opts    Options
}

// NewAuditor creates an Auditor. A nil oracle or searcher makes every audit
// pass through as CLEAN. A nil prompt set uses the embedded defaults.
func NewAuditor(o oracle.Oracle, s Searcher, p *prompts.Set, opts Options) *Auditor {
	if p == nil {
		p = prompts.Default()
	}
	return &Auditor{oracle: o, search: s, prompts: p, opts: opts.withDefaults()}
}

// TraceIntent audits objective against every ingested repository.
func (a *Auditor) TraceIntent(ctx context.Context, objective string) Result {
	return a.TraceRepo(ctx, objective, "")
}

// TraceRepo audits objective against the fragments of one repository
// ("owner/name"); an empty repo searches everything.
func (a *Auditor) TraceRepo(ctx context.Context, objective, repo string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failOpen("panic", fmt.Errorf("%v", r))
		}
	}()

	if a == nil || a.oracle == nil || a.search == nil {
		logging.TraceDebug("Auditor not configured, passing through")
		return Clean()
	}

	timer := logging.StartTimer(logging.CategoryTrace, "TraceIntent")
	defer timer.Stop()

	n, err := a.search.Count(ctx)
	if err != nil {
		logging.TraceWarn("Chunk count failed, passing through: %v", err)
		return Clean()
	}
	if n == 0 {
		logging.TraceDebug("Vector store empty, passing through")
		return Clean()
	}

	entities := a.extractEntities(ctx, objective)
	logging.TraceDebug("Entities: %v", entities)

	query := strings.TrimSpace(objective + " " + strings.Join(entities, " "))
	chunks, err := a.retrieve(ctx, query, repo)
	if err != nil {
		return failOpen("retrieval", err)
	}
	if len(chunks) == 0 {
		logging.Trace("No related fragments found, CLEAN")
		return Clean()
	}

	reply, err := a.oracle.Invoke(oracle.WithPurpose(ctx, PurposeCollisionAudit), []oracle.Message{
		oracle.System(a.prompts.CollisionAudit.System),
		oracle.User(a.prompts.CollisionAudit.Render(map[string]string{
			prompts.VarObjective: objective,
			prompts.VarContext:   FormatContext(chunks),
		})),
	})
	if err != nil {
		return failOpen("adjudication", err)
	}

	res = ParseVerdict(reply.Content)
	if res.IsCollision() {
		logging.Trace("COLLISION in %s: %s", res.Source, res.Reason)
	} else {
		logging.Trace("CLEAN after reviewing %d fragments", len(chunks))
	}
	return res
}

// failOpen is the single degradation path for audit failures.
func failOpen(stage string, err error) Result {
	logging.TraceWarn("Audit %s failed, treating as CLEAN: %v", stage, err)
	return Clean()
}

// extractEntities asks the oracle for technical entities and falls back to
// the objective's longer words when the reply is unusable.
func (a *Auditor) extractEntities(ctx context.Context, objective string) []string {
	reply, err := a.oracle.Invoke(oracle.WithPurpose(ctx, PurposeEntityExtraction), []oracle.Message{
		oracle.System(a.prompts.EntityExtraction.System),
		oracle.User(a.prompts.EntityExtraction.Render(map[string]string{prompts.VarObjective: objective})),
	})
	if err != nil {
		logging.TraceWarn("Entity extraction failed, using keywords: %v", err)
		return FallbackEntities(objective, a.opts.MaxEntities)
	}
	if entities := parseEntities(reply.Content, a.opts.MaxEntities); len(entities) > 0 {
		return entities
	}
	logging.TraceDebug("Unparsable entity reply, using keywords")
	return FallbackEntities(objective, a.opts.MaxEntities)
}

// retrieve runs the code and doc searches concurrently and returns code
// fragments first.
func (a *Auditor) retrieve(ctx context.Context, query, repo string) ([]store.Chunk, error) {
	var code, docs []store.Chunk
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		code, err = a.searchType(gctx, query, store.ChunkCode, repo, a.opts.CodeK)
		return err
	})
	g.Go(func() error {
		var err error
		docs, err = a.searchType(gctx, query, store.ChunkDoc, repo, a.opts.DocK)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(code, docs...), nil
}

func (a *Auditor) searchType(ctx context.Context, query string, t store.ChunkType, repo string, k int) (chunks []store.Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s search panicked: %v", t, r)
		}
	}()
	chunks, err = a.search.SimilaritySearch(ctx, query, k, &store.Filter{Type: t, Repo: repo})
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", t, err)
	}
	return chunks, nil
}

// FormatContext renders chunks for the adjudication prompt, each labelled
// with its type and source path.
func FormatContext(chunks []store.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "--- [%s] %s ---\n", strings.ToUpper(string(c.Metadata.Type)), c.Metadata.FilePath)
		b.WriteString(strings.TrimRight(c.Content, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
