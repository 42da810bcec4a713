package mission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"machgate/internal/entropy"
	"machgate/internal/store"
)

// StoreRepository adapts store.MissionStore to Repository.
type StoreRepository struct {
	store *store.MissionStore
}

// NewStoreRepository wraps a SQLite mission store.
func NewStoreRepository(s *store.MissionStore) *StoreRepository {
	return &StoreRepository{store: s}
}

func (r *StoreRepository) Create(ctx context.Context, m Mission) error {
	rec, err := toRecord(m)
	if err != nil {
		return err
	}
	return r.store.CreateMission(ctx, rec)
}

func (r *StoreRepository) Update(ctx context.Context, m Mission) error {
	rec, err := toRecord(m)
	if err != nil {
		return err
	}
	if err := r.store.UpdateMission(ctx, rec); err != nil {
		return notFound(err)
	}
	return nil
}

func (r *StoreRepository) Get(ctx context.Context, id string) (Mission, error) {
	rec, err := r.store.GetMission(ctx, id)
	if err != nil {
		return Mission{}, notFound(err)
	}
	return fromRecord(rec)
}

func (r *StoreRepository) List(ctx context.Context, limit int) ([]Mission, error) {
	recs, err := r.store.ListMissions(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Mission, 0, len(recs))
	for _, rec := range recs {
		m, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *StoreRepository) SaveDeckCard(ctx context.Context, c DeckCard) error {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode deck card metadata: %w", err)
	}
	return r.store.SaveDeckCard(ctx, store.DeckCardRecord{
		ID:        c.ID,
		MissionID: c.MissionID,
		Label:     string(c.Label),
		Status:    string(c.Status),
		Score:     c.Score,
		Metadata:  meta,
		CreatedAt: c.CreatedAt,
	})
}

func (r *StoreRepository) DeckCards(ctx context.Context, missionID string) ([]DeckCard, error) {
	recs, err := r.store.ListDeckCards(ctx, missionID)
	if err != nil {
		return nil, err
	}
	out := make([]DeckCard, 0, len(recs))
	for _, rec := range recs {
		c := DeckCard{
			ID:        rec.ID,
			MissionID: rec.MissionID,
			Label:     entropy.FlightLabel(rec.Label),
			Status:    entropy.FlightStatus(rec.Status),
			Score:     rec.Score,
			CreatedAt: rec.CreatedAt,
		}
		if len(rec.Metadata) > 0 {
			if err := json.Unmarshal(rec.Metadata, &c.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode deck card %s metadata: %w", rec.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func toRecord(m Mission) (store.MissionRecord, error) {
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return store.MissionRecord{}, fmt.Errorf("failed to encode mission %s metadata: %w", m.ID, err)
	}
	return store.MissionRecord{
		ID:        m.ID,
		Objective: m.Objective,
		RepoURL:   m.RepoURL,
		Status:    string(m.Status),
		Plan:      m.Plan,
		Metadata:  meta,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func fromRecord(rec store.MissionRecord) (Mission, error) {
	m := Mission{
		ID:        rec.ID,
		Objective: rec.Objective,
		RepoURL:   rec.RepoURL,
		Status:    Status(rec.Status),
		Plan:      rec.Plan,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if len(rec.Metadata) > 0 {
		if err := json.Unmarshal(rec.Metadata, &m.Metadata); err != nil {
			return Mission{}, fmt.Errorf("failed to decode mission %s metadata: %w", rec.ID, err)
		}
	}
	return m, nil
}
