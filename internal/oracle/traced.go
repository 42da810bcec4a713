package oracle

import (
	"context"
	"time"

	"github.com/google/uuid"

	"machgate/internal/logging"
)

// CallRecord describes one oracle invocation for the journal.
type CallRecord struct {
	ID            string
	Purpose       string
	Provider      string
	Messages      int
	PromptChars   int
	ResponseChars int
	Duration      time.Duration
	Success       bool
	Error         string
	CreatedAt     time.Time
}

// Journal persists call records.
type Journal interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// Traced wraps an Oracle and journals every call. Journal failures are
// logged and never affect the call's result.
type Traced struct {
	underlying Oracle
	journal    Journal
	provider   string
}

// NewTraced wraps o. provider labels the records, e.g. "genai:gemini-2.5-flash".
func NewTraced(o Oracle, journal Journal, provider string) *Traced {
	return &Traced{underlying: o, journal: journal, provider: provider}
}

// Invoke calls the underlying oracle and records the outcome.
func (t *Traced) Invoke(ctx context.Context, messages []Message) (Response, error) {
	purpose := PurposeFrom(ctx)
	promptChars := 0
	for _, m := range messages {
		promptChars += len(m.Content)
	}

	start := time.Now()
	logging.Oracle("Oracle call started: purpose=%s provider=%s prompt_len=%d", purpose, t.provider, promptChars)

	resp, err := t.underlying.Invoke(ctx, messages)

	rec := CallRecord{
		ID:            uuid.NewString(),
		Purpose:       purpose,
		Provider:      t.provider,
		Messages:      len(messages),
		PromptChars:   promptChars,
		ResponseChars: len(resp.Content),
		Duration:      time.Since(start),
		Success:       err == nil,
		CreatedAt:     start.UTC(),
	}
	if err != nil {
		rec.Error = err.Error()
		logging.Get(logging.CategoryOracle).Warn("Oracle call failed: purpose=%s duration=%v error=%v", purpose, rec.Duration, err)
	} else {
		logging.Oracle("Oracle call completed: purpose=%s duration=%v response_len=%d", purpose, rec.Duration, rec.ResponseChars)
	}

	if t.journal != nil {
		// Recorded even when ctx has expired so timeouts show up in the journal.
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if jerr := t.journal.RecordCall(jctx, rec); jerr != nil {
			logging.OracleDebug("Failed to journal oracle call: %v", jerr)
		}
		cancel()
	}

	return resp, err
}
