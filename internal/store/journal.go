package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"machgate/internal/oracle"
)

// OracleJournal persists oracle call records. Implements oracle.Journal.
type OracleJournal struct {
	db *sql.DB
}

var _ oracle.Journal = (*OracleJournal)(nil)

var journalSchema = []string{
	`CREATE TABLE IF NOT EXISTS oracle_calls (
		id TEXT PRIMARY KEY,
		purpose TEXT NOT NULL,
		provider TEXT NOT NULL,
		messages INTEGER NOT NULL,
		prompt_chars INTEGER NOT NULL,
		response_chars INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_oracle_calls_purpose ON oracle_calls(purpose, created_at)`,
}

// NewOracleJournal creates the oracle_calls table on db.
func NewOracleJournal(ctx context.Context, db *sql.DB) (*OracleJournal, error) {
	if err := migrate(ctx, db, journalSchema...); err != nil {
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return &OracleJournal{db: db}, nil
}

// RecordCall inserts one call record.
func (j *OracleJournal) RecordCall(ctx context.Context, rec oracle.CallRecord) error {
	_, err := j.db.ExecContext(ctx, `INSERT INTO oracle_calls
		(id, purpose, provider, messages, prompt_chars, response_chars, duration_ms, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Purpose, rec.Provider, rec.Messages, rec.PromptChars, rec.ResponseChars,
		rec.Duration.Milliseconds(), rec.Success, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record oracle call: %w", err)
	}
	return nil
}

// PurposeStats aggregates journaled calls for one purpose.
type PurposeStats struct {
	Purpose     string
	Calls       int
	Failures    int
	AvgDuration time.Duration
}

// Stats aggregates all journaled calls by purpose.
func (j *OracleJournal) Stats(ctx context.Context) ([]PurposeStats, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT purpose, COUNT(*),
			SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END),
			CAST(AVG(duration_ms) AS INTEGER)
		FROM oracle_calls GROUP BY purpose ORDER BY purpose`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate oracle calls: %w", err)
	}
	defer rows.Close()

	var out []PurposeStats
	for rows.Next() {
		var s PurposeStats
		var avgMs int64
		if err := rows.Scan(&s.Purpose, &s.Calls, &s.Failures, &avgMs); err != nil {
			return nil, fmt.Errorf("failed to scan oracle stats: %w", err)
		}
		s.AvgDuration = time.Duration(avgMs) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}
