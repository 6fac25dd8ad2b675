package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"valorant-hub/internal/db"
	"valorant-hub/internal/domain"

	"github.com/rs/zerolog"
)

type HistoryRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewHistoryRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Write persists the immutable match record and its per-player rows in one
// transaction. Keyed by match ID, so a duplicate write fails on the primary
// key rather than producing a second record.
func (r *HistoryRepository) Write(ctx context.Context, record domain.MatchRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	err = qtx.InsertMatchRecord(ctx, db.InsertMatchRecordParams{
		MatchID:    record.MatchID,
		Map:        record.Map,
		CaptainA:   record.CaptainA,
		CaptainB:   record.CaptainB,
		Winner:     string(record.Winner),
		ScoreA:     int64(record.ScoreA),
		ScoreB:     int64(record.ScoreB),
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert match record %s: %w", record.MatchID, err)
	}

	for _, p := range record.Players {
		err := qtx.InsertMatchRecordPlayer(ctx, db.InsertMatchRecordPlayerParams{
			MatchID:      p.MatchID,
			UserID:       p.UserID,
			Username:     p.Username,
			Team:         string(p.Team),
			PointsBefore: p.PointsBefore,
			PointsAfter:  p.PointsAfter,
		})
		if err != nil {
			return fmt.Errorf("failed to insert match record player %s: %w", p.UserID, err)
		}
	}

	return tx.Commit()
}

func (r *HistoryRepository) Get(ctx context.Context, matchID string) (*domain.MatchRecord, error) {
	m, err := r.queries.GetMatchRecord(ctx, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}

	players, err := r.queries.ListMatchRecordPlayers(ctx, matchID)
	if err != nil {
		return nil, err
	}

	record := &domain.MatchRecord{
		MatchID:    m.MatchID,
		Map:        m.Map,
		CaptainA:   m.CaptainA,
		CaptainB:   m.CaptainB,
		Winner:     domain.TeamSide(m.Winner),
		ScoreA:     int(m.ScoreA),
		ScoreB:     int(m.ScoreB),
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
	for _, p := range players {
		record.Players = append(record.Players, domain.MatchRecordPlayer{
			MatchID:      p.MatchID,
			UserID:       p.UserID,
			Username:     p.Username,
			Team:         domain.TeamSide(p.Team),
			PointsBefore: p.PointsBefore,
			PointsAfter:  p.PointsAfter,
		})
	}
	return record, nil
}
