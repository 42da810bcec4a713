// Package mission runs the admission pipeline for one objective: optional
// repository ingestion and collision audit, plan generation, entropy
// scoring, and deck card emission.
package mission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"machgate/internal/entropy"
	"machgate/internal/github"
	"machgate/internal/logging"
	"machgate/internal/oracle"
	"machgate/internal/prompts"
	"machgate/internal/trace"
)

// DefaultGenerationTimeout bounds a single plan generation call.
const DefaultGenerationTimeout = 5 * time.Minute

// PurposeMissionGeneration tags generation calls in the oracle journal.
const PurposeMissionGeneration = "mission_generation"

// Config wires the orchestrator's collaborators.
type Config struct {
	Repository        Repository    // required
	Generator         oracle.Oracle // required
	Auditor           Tracer        // nil disables collision audits
	Ingester          Ingestor      // nil skips ingestion before audits
	Prompts           *prompts.Set  // nil uses the embedded defaults
	Scorer            *entropy.Scorer
	GenerationTimeout time.Duration
	Events            chan<- Event // optional; sends never block
}

// Orchestrator processes missions. It is safe for concurrent use across
// distinct missions.
type Orchestrator struct {
	repo      Repository
	generator oracle.Oracle
	auditor   Tracer
	ingester  Ingestor
	prompts   *prompts.Set
	scorer    *entropy.Scorer
	timeout   time.Duration
	events    chan<- Event

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator validates cfg and returns an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Repository == nil {
		return nil, errors.New("mission repository is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generation oracle is required")
	}
	o := &Orchestrator{
		repo:      cfg.Repository,
		generator: cfg.Generator,
		auditor:   cfg.Auditor,
		ingester:  cfg.Ingester,
		prompts:   cfg.Prompts,
		scorer:    cfg.Scorer,
		timeout:   cfg.GenerationTimeout,
		events:    cfg.Events,
		inFlight:  make(map[string]struct{}),
	}
	if o.prompts == nil {
		o.prompts = prompts.Default()
	}
	if o.scorer == nil {
		o.scorer = entropy.NewScorer(entropy.DefaultParams())
	}
	if o.timeout <= 0 {
		o.timeout = DefaultGenerationTimeout
	}
	return o, nil
}

// Submit creates a mission for objective and processes it.
func (o *Orchestrator) Submit(ctx context.Context, objective, repoURL string) (Outcome, error) {
	objective = strings.TrimSpace(objective)
	if objective == "" {
		return Outcome{}, ErrEmptyObjective
	}
	now := time.Now().UTC()
	m := Mission{
		ID:        uuid.NewString(),
		Objective: objective,
		RepoURL:   strings.TrimSpace(repoURL),
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.repo.Create(ctx, m); err != nil {
		return Outcome{}, fmt.Errorf("failed to create mission: %w", err)
	}
	logging.Mission("Mission %s submitted (repo=%q)", m.ID, m.RepoURL)
	return o.Process(ctx, m)
}

// Retry reprocesses a stored mission from scratch.
func (o *Orchestrator) Retry(ctx context.Context, id string) (Outcome, error) {
	m, err := o.repo.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	return o.Process(ctx, m)
}

// Process runs the admission pipeline for m. A mission already in flight
// returns ErrAlreadyProcessing. Everything computed is attached to the
// stored mission; a previous attempt's results are discarded.
func (o *Orchestrator) Process(ctx context.Context, m Mission) (Outcome, error) {
	if m.ID == "" {
		return Outcome{}, errors.New("mission has no id")
	}
	if !o.acquire(m.ID) {
		return Outcome{}, fmt.Errorf("mission %s: %w", m.ID, ErrAlreadyProcessing)
	}
	defer o.release(m.ID)

	timer := logging.StartTimer(logging.CategoryMission, "Process "+m.ID)
	defer timer.Stop()

	m.Status = StatusProcessing
	m.Plan = ""
	m.Metadata = Metadata{PromptsVersion: o.prompts.Version}
	o.emit(m.ID, EventStarted, "processing objective")

	verdict := o.audit(ctx, &m)
	if verdict.IsCollision() {
		return o.reject(ctx, m, verdict)
	}
	return o.generate(ctx, m, verdict)
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[id]; busy {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.inFlight, id)
	o.mu.Unlock()
}

// audit ingests the attached repository and runs the collision audit.
// Without a repository or auditor the verdict is CLEAN.
func (o *Orchestrator) audit(ctx context.Context, m *Mission) trace.Result {
	if m.RepoURL == "" || o.auditor == nil {
		return trace.Clean()
	}
	repo, err := github.ParseRepo(m.RepoURL)
	if err != nil {
		logging.MissionWarn("Mission %s: unusable repository %q, skipping audit: %v", m.ID, m.RepoURL, err)
		return trace.Clean()
	}

	if o.ingester != nil {
		res, err := o.ingester.IngestGitHubRepo(ctx, m.RepoURL)
		if err != nil {
			logging.MissionWarn("Mission %s: ingestion of %s failed, auditing existing fragments: %v", m.ID, repo, err)
		} else {
			m.Metadata.Ingest = &res
			o.emit(m.ID, EventIngested, fmt.Sprintf("%s: %d chunks", repo, res.Chunks))
		}
	}

	verdict := o.auditor.TraceRepo(ctx, m.Objective, repo.String())
	m.Metadata.Trace = &verdict
	o.emit(m.ID, EventTraced, string(verdict.Verdict))
	return verdict
}

// reject persists a collision rejection. Generation is never invoked.
func (o *Orchestrator) reject(ctx context.Context, m Mission, verdict trace.Result) (Outcome, error) {
	result := entropy.ForceWorst(o.scorer.Calculate(m.Objective))

	m.Status = StatusRejected
	m.Plan = FormatCollisionReport(verdict)
	m.Metadata.Entropy = &result
	m.Metadata.EffectiveStatus = result.Status
	m.UpdatedAt = time.Now().UTC()
	if err := o.repo.Update(ctx, m); err != nil {
		return Outcome{Mission: m, Trace: verdict}, fmt.Errorf("failed to persist rejection of %s: %w", m.ID, err)
	}
	logging.Mission("Mission %s rejected: collision in %s", m.ID, verdict.Source)

	card := newDeckCard(m, result)
	card.Metadata.Collision = true
	card.Metadata.Source = verdict.Source
	out := Outcome{Mission: m, Trace: verdict, Entropy: &result}
	if err := o.repo.SaveDeckCard(ctx, card); err != nil {
		return out, fmt.Errorf("failed to save collision deck card for %s: %w", m.ID, err)
	}
	out.DeckCard = &card
	o.emit(m.ID, EventFinished, string(StatusRejected))
	return out, nil
}

// generate asks the oracle for a plan, scores the objective and persists the
// outcome.
func (o *Orchestrator) generate(ctx context.Context, m Mission, verdict trace.Result) (Outcome, error) {
	o.emit(m.ID, EventGenerating, "requesting flight plan")

	plan, err := o.invokeGenerator(ctx, m.Objective)
	if err != nil {
		return o.fail(ctx, m, verdict, err)
	}

	result := o.scorer.Calculate(m.Objective)
	vague := entropy.IsVagueResponse(plan)
	effective := entropy.EffectiveStatus(result, vague)
	o.emit(m.ID, EventScored, fmt.Sprintf("%d %s (effective %s)", result.Score, result.Label, effective))

	m.Status = StatusCompleted
	m.Plan = plan
	m.Metadata.Entropy = &result
	m.Metadata.Vague = vague
	m.Metadata.EffectiveStatus = effective
	m.UpdatedAt = time.Now().UTC()

	out := Outcome{Mission: m, Trace: verdict, Entropy: &result}
	if err := o.repo.Update(ctx, m); err != nil {
		return out, fmt.Errorf("failed to persist plan for %s: %w", m.ID, err)
	}

	if effective == entropy.StatusApproved {
		card := newDeckCard(m, result)
		if err := o.repo.SaveDeckCard(ctx, card); err != nil {
			return out, fmt.Errorf("failed to save deck card for %s: %w", m.ID, err)
		}
		out.DeckCard = &card
	} else {
		logging.Mission("Mission %s completed without deck card (score=%d, effective=%s, vague=%v)",
			m.ID, result.Score, effective, vague)
	}
	o.emit(m.ID, EventFinished, string(StatusCompleted))
	return out, nil
}

func (o *Orchestrator) invokeGenerator(ctx context.Context, objective string) (string, error) {
	gctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	p := o.prompts.MissionGeneration
	resp, err := o.generator.Invoke(oracle.WithPurpose(gctx, PurposeMissionGeneration), []oracle.Message{
		oracle.System(p.System),
		oracle.User(p.Render(map[string]string{prompts.VarObjective: objective})),
	})
	if err != nil {
		if errors.Is(gctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("generation timed out after %s: %w", o.timeout, err)
		}
		return "", err
	}
	plan := strings.TrimSpace(resp.Content)
	if plan == "" {
		return "", ErrEmptyPlan
	}
	return plan, nil
}

// fail marks m failed with err embedded in the stored plan.
func (o *Orchestrator) fail(ctx context.Context, m Mission, verdict trace.Result, cause error) (Outcome, error) {
	logging.MissionWarn("Mission %s failed: %v", m.ID, cause)

	m.Status = StatusFailed
	m.Plan = "MISSION FAILED: " + cause.Error()
	m.Metadata.Error = cause.Error()
	m.UpdatedAt = time.Now().UTC()

	err := fmt.Errorf("mission %s failed: %w", m.ID, cause)
	// Persist even when the caller's context is gone.
	if perr := o.repo.Update(context.WithoutCancel(ctx), m); perr != nil {
		err = errors.Join(err, fmt.Errorf("failed to persist failure: %w", perr))
	}
	o.emit(m.ID, EventFinished, string(StatusFailed))
	return Outcome{Mission: m, Trace: verdict}, err
}

func newDeckCard(m Mission, r entropy.Result) DeckCard {
	return DeckCard{
		ID:        uuid.NewString(),
		MissionID: m.ID,
		Label:     r.Label,
		Status:    r.Status,
		Score:     r.Score,
		Metadata: DeckCardMetadata{
			EntropyScore: r.Score,
			Vectors:      r.Vectors,
			FlightLabel:  r.Label,
			WordCount:    entropy.WordCount(m.Objective),
			Confidence:   r.Confidence,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (o *Orchestrator) emit(id string, t EventType, msg string) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- Event{Type: t, MissionID: id, Message: msg, Timestamp: time.Now().UTC()}:
	default:
	}
}
