package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valorant-hub/internal/db"
	"valorant-hub/internal/domain"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// ErrDuplicateMatch means an open match for the same ten players already
// exists. Callers treat it as losing a benign race, not as a failure.
var ErrDuplicateMatch = errors.New("match already exists for this roster")

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewMatchRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// CreateFromQueue inserts the active match and removes the ten consumed
// queue entries in one transaction. The roster_key unique index over open
// matches is the idempotency guard: a concurrent creation attempt for the
// same ten players fails with ErrDuplicateMatch, while finished matches do
// not block the roster from playing again.
func (r *MatchRepository) CreateFromQueue(ctx context.Context, m domain.Match) error {
	snapshot, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	err = qtx.InsertActiveMatch(ctx, db.InsertActiveMatchParams{
		ID:        m.ID,
		RosterKey: m.RosterKey(),
		Phase:     string(m.Phase),
		Snapshot:  string(snapshot),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.CreatedAt,
	})
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateMatch
		}
		return fmt.Errorf("failed to insert active match: %w", err)
	}

	for _, p := range m.Players {
		if err := qtx.DeleteQueueEntry(ctx, p.UserID); err != nil {
			return fmt.Errorf("failed to consume queue entry %s: %w", p.UserID, err)
		}
	}

	return tx.Commit()
}

// SaveSnapshot persists the current aggregate. Best-effort: the in-memory
// room is authoritative while the match is live.
func (r *MatchRepository) SaveSnapshot(ctx context.Context, m domain.Match) error {
	snapshot, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal match snapshot: %w", err)
	}
	return r.queries.UpdateActiveMatchSnapshot(ctx, db.UpdateActiveMatchSnapshotParams{
		Phase:     string(m.Phase),
		Snapshot:  string(snapshot),
		UpdatedAt: time.Now(),
		ID:        m.ID,
	})
}

// Finalize sets the result_reported latch with a conditional write. It
// returns false when another finalize already claimed the latch.
func (r *MatchRepository) Finalize(ctx context.Context, m domain.Match) (bool, error) {
	snapshot, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("failed to marshal match snapshot: %w", err)
	}
	affected, err := r.queries.FinalizeActiveMatch(ctx, db.FinalizeActiveMatchParams{
		Phase:     string(m.Phase),
		Snapshot:  string(snapshot),
		UpdatedAt: time.Now(),
		ID:        m.ID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to finalize match %s: %w", m.ID, err)
	}
	return affected == 1, nil
}

// ListOpen returns every match whose result latch is unset, oldest first.
// Used to rehydrate rooms after a restart.
func (r *MatchRepository) ListOpen(ctx context.Context) ([]domain.Match, error) {
	rows, err := r.queries.ListOpenActiveMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open matches: %w", err)
	}
	matches := make([]domain.Match, 0, len(rows))
	for _, row := range rows {
		var m domain.Match
		if err := json.Unmarshal([]byte(row.Snapshot), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal match snapshot %s: %w", row.ID, err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (r *MatchRepository) Delete(ctx context.Context, id string) error {
	return r.queries.DeleteActiveMatch(ctx, id)
}

func (r *MatchRepository) Get(ctx context.Context, id string) (domain.Match, error) {
	row, err := r.queries.GetActiveMatch(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Match{}, ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, err
	}

	var m domain.Match
	if err := json.Unmarshal([]byte(row.Snapshot), &m); err != nil {
		return domain.Match{}, fmt.Errorf("failed to unmarshal match snapshot %s: %w", id, err)
	}
	return m, nil
}
