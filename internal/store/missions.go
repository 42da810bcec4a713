package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"machgate/internal/logging"
)

// MissionRecord is the persisted form of a mission.
// Mirrors mission.Mission to avoid import cycles; Metadata is opaque JSON.
type MissionRecord struct {
	ID        string
	Objective string
	RepoURL   string
	Status    string
	Plan      string
	Metadata  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeckCardRecord is the persisted form of a deck card.
type DeckCardRecord struct {
	ID        string
	MissionID string
	Label     string
	Status    string
	Score     int
	Metadata  []byte
	CreatedAt time.Time
}

// MissionStore persists missions and their deck cards.
type MissionStore struct {
	db *sql.DB
}

var missionSchema = []string{
	`CREATE TABLE IF NOT EXISTS missions (
		id TEXT PRIMARY KEY,
		objective TEXT NOT NULL,
		repo_url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		plan TEXT NOT NULL DEFAULT '',
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_missions_created ON missions(created_at)`,
	`CREATE TABLE IF NOT EXISTS deck_cards (
		id TEXT PRIMARY KEY,
		mission_id TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		status TEXT NOT NULL,
		score INTEGER NOT NULL,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deck_cards_mission ON deck_cards(mission_id)`,
}

// NewMissionStore creates the mission schema on db.
func NewMissionStore(ctx context.Context, db *sql.DB) (*MissionStore, error) {
	if err := migrate(ctx, db, missionSchema...); err != nil {
		return nil, fmt.Errorf("failed to initialize mission schema: %w", err)
	}
	logging.StoreDebug("MissionStore ready")
	return &MissionStore{db: db}, nil
}

// CreateMission inserts a new mission.
func (s *MissionStore) CreateMission(ctx context.Context, m MissionRecord) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO missions
		(id, objective, repo_url, status, plan, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Objective, m.RepoURL, m.Status, m.Plan, nullableJSON(m.Metadata), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mission %s: %w", m.ID, err)
	}
	logging.StoreDebug("Created mission %s (status=%s)", m.ID, m.Status)
	return nil
}

// UpdateMission overwrites status, plan and metadata of an existing mission.
func (s *MissionStore) UpdateMission(ctx context.Context, m MissionRecord) error {
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE missions
		SET status = ?, plan = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		m.Status, m.Plan, nullableJSON(m.Metadata), m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update mission %s: %w", m.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mission %s: %w", m.ID, sql.ErrNoRows)
	}
	logging.StoreDebug("Updated mission %s (status=%s)", m.ID, m.Status)
	return nil
}

// GetMission loads one mission. A missing mission returns an error wrapping sql.ErrNoRows.
func (s *MissionStore) GetMission(ctx context.Context, id string) (MissionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, objective, repo_url, status, plan, metadata, created_at, updated_at
		FROM missions WHERE id = ?`, id)
	m, err := scanMission(row)
	if err != nil {
		return MissionRecord{}, fmt.Errorf("failed to load mission %s: %w", id, err)
	}
	return m, nil
}

// ListMissions returns the most recent missions first.
func (s *MissionStore) ListMissions(ctx context.Context, limit int) ([]MissionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, objective, repo_url, status, plan, metadata, created_at, updated_at
		FROM missions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var out []MissionRecord
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SaveDeckCard inserts a deck card.
func (s *MissionStore) SaveDeckCard(ctx context.Context, c DeckCardRecord) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO deck_cards
		(id, mission_id, label, status, score, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.MissionID, c.Label, c.Status, c.Score, nullableJSON(c.Metadata), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save deck card for mission %s: %w", c.MissionID, err)
	}
	logging.Store("Deck card %s saved for mission %s (%s, score=%d)", c.ID, c.MissionID, c.Label, c.Score)
	return nil
}

// ListDeckCards returns the deck cards of a mission, oldest first.
func (s *MissionStore) ListDeckCards(ctx context.Context, missionID string) ([]DeckCardRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, mission_id, label, status, score, metadata, created_at
		FROM deck_cards WHERE mission_id = ? ORDER BY created_at, id`, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deck cards: %w", err)
	}
	defer rows.Close()

	var out []DeckCardRecord
	for rows.Next() {
		var c DeckCardRecord
		var meta sql.NullString
		if err := rows.Scan(&c.ID, &c.MissionID, &c.Label, &c.Status, &c.Score, &meta, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deck card: %w", err)
		}
		if meta.Valid {
			c.Metadata = []byte(meta.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMission(r rowScanner) (MissionRecord, error) {
	var m MissionRecord
	var meta sql.NullString
	if err := r.Scan(&m.ID, &m.Objective, &m.RepoURL, &m.Status, &m.Plan, &meta, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return MissionRecord{}, err
	}
	if meta.Valid {
		m.Metadata = []byte(meta.String)
	}
	return m, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
