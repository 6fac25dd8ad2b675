package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"valorant-hub/internal/db"
	"valorant-hub/internal/domain"

	"github.com/rs/zerolog"
)

type QueueRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewQueueRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *QueueRepository {
	return &QueueRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Join inserts a queue entry. Joining twice is a no-op; the original joinedAt
// is kept so FIFO order is stable.
func (r *QueueRepository) Join(ctx context.Context, userID, username string, joinedAt time.Time) error {
	err := r.queries.InsertQueueEntry(ctx, db.InsertQueueEntryParams{
		UserID:   userID,
		Username: username,
		JoinedAt: joinedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue user %s: %w", userID, err)
	}
	return nil
}

func (r *QueueRepository) Leave(ctx context.Context, userID string) error {
	if err := r.queries.DeleteQueueEntry(ctx, userID); err != nil {
		return fmt.Errorf("failed to dequeue user %s: %w", userID, err)
	}
	return nil
}

// List returns all queue entries in FIFO order (joinedAt, then user ID for a
// deterministic tie-break).
func (r *QueueRepository) List(ctx context.Context) ([]domain.QueueEntry, error) {
	entries, err := r.queries.ListQueueEntries(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.QueueEntry, len(entries))
	for i, e := range entries {
		result[i] = domain.QueueEntry{
			UserID:   e.UserID,
			Username: e.Username,
			JoinedAt: e.JoinedAt,
		}
	}
	return result, nil
}

func (r *QueueRepository) Count(ctx context.Context) (int, error) {
	n, err := r.queries.CountQueueEntries(ctx)
	return int(n), err
}
