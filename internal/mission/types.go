package mission

import (
	"context"
	"errors"
	"time"

	"machgate/internal/entropy"
	"machgate/internal/ingest"
	"machgate/internal/trace"
)

// Status is a mission's lifecycle state.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusFailed     Status = "failed"
)

var (
	// ErrAlreadyProcessing is returned when a mission is already in flight.
	ErrAlreadyProcessing = errors.New("mission already processing")
	// ErrEmptyPlan is returned when generation produced no text.
	ErrEmptyPlan = errors.New("generation returned an empty plan")
	// ErrEmptyObjective is returned by Submit for a blank objective.
	ErrEmptyObjective = errors.New("objective is empty")
	// ErrNotFound is returned when a mission does not exist.
	ErrNotFound = errors.New("mission not found")
)

// Mission is one objective submitted for admission.
type Mission struct {
	ID        string    `json:"id"`
	Objective string    `json:"objective"`
	RepoURL   string    `json:"repoUrl,omitempty"`
	Status    Status    `json:"status"`
	Plan      string    `json:"plan,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata is everything computed for a mission during one processing
// attempt. It is replaced, never patched, on retry.
type Metadata struct {
	Trace           *trace.Result        `json:"trace,omitempty"`
	Ingest          *ingest.Result       `json:"ingest,omitempty"`
	Entropy         *entropy.Result      `json:"entropy,omitempty"`
	Vague           bool                 `json:"vague,omitempty"`
	EffectiveStatus entropy.FlightStatus `json:"effectiveStatus,omitempty"`
	PromptsVersion  string               `json:"promptsVersion,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// DeckCard is the visible artifact emitted for an admitted or collided mission.
type DeckCard struct {
	ID        string               `json:"id"`
	MissionID string               `json:"missionId"`
	Label     entropy.FlightLabel  `json:"label"`
	Status    entropy.FlightStatus `json:"status"`
	Score     int                  `json:"score"`
	Metadata  DeckCardMetadata     `json:"metadata"`
	CreatedAt time.Time            `json:"createdAt"`
}

// DeckCardMetadata carries the full entropy breakdown shown on a card.
type DeckCardMetadata struct {
	EntropyScore int                 `json:"entropyScore"`
	Vectors      entropy.Vectors     `json:"vectors"`
	FlightLabel  entropy.FlightLabel `json:"flightLabel"`
	WordCount    int                 `json:"wordCount"`
	Confidence   float64             `json:"confidence"`
	Collision    bool                `json:"collision,omitempty"`
	Source       string              `json:"source,omitempty"`
}

// Outcome is the result of one Process call.
type Outcome struct {
	Mission  Mission         `json:"mission"`
	Trace    trace.Result    `json:"trace"`
	Entropy  *entropy.Result `json:"entropy,omitempty"`
	DeckCard *DeckCard       `json:"deckCard,omitempty"`
}

// Repository persists missions and deck cards.
type Repository interface {
	Create(ctx context.Context, m Mission) error
	Update(ctx context.Context, m Mission) error
	Get(ctx context.Context, id string) (Mission, error)
	List(ctx context.Context, limit int) ([]Mission, error)
	SaveDeckCard(ctx context.Context, c DeckCard) error
	DeckCards(ctx context.Context, missionID string) ([]DeckCard, error)
}

// Tracer audits an objective against a repository's fragments.
type Tracer interface {
	TraceRepo(ctx context.Context, objective, repo string) trace.Result
}

// Ingestor makes a repository's fragments available to the Tracer.
type Ingestor interface {
	IngestGitHubRepo(ctx context.Context, repoURL string) (ingest.Result, error)
}

// EventType names an orchestration step.
type EventType string

const (
	EventStarted    EventType = "started"
	EventIngested   EventType = "ingested"
	EventTraced     EventType = "traced"
	EventGenerating EventType = "generating"
	EventScored     EventType = "scored"
	EventFinished   EventType = "finished"
)

// Event reports orchestration progress.
type Event struct {
	Type      EventType `json:"type"`
	MissionID string    `json:"missionId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
