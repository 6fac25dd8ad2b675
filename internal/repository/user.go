package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"valorant-hub/internal/constants"
	"valorant-hub/internal/db"
	"valorant-hub/internal/domain"

	"github.com/rs/zerolog"
)

type UserRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewUserRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *UserRepository {
	return &UserRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomainUser(u), nil
}

// Ensure creates the user with default points if it does not exist yet, and
// refreshes the username if it does.
func (r *UserRepository) Ensure(ctx context.Context, id, username string, isBot bool) (*domain.User, error) {
	now := time.Now()
	err := r.queries.UpsertUser(ctx, db.UpsertUserParams{
		ID:        id,
		Username:  username,
		Points:    constants.DefaultPoints,
		IsBot:     isBot,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user %s: %w", id, err)
	}
	return r.Get(ctx, id)
}

// ApplyResult writes one player's post-match stats: new point total, win/loss
// counter, streak and last delta.
func (r *UserRepository) ApplyResult(ctx context.Context, id string, newPoints float64, won bool, newStreak int, delta float64) error {
	var wonDelta, lostDelta int64
	if won {
		wonDelta = 1
	} else {
		lostDelta = 1
	}

	err := r.queries.ApplyUserResult(ctx, db.ApplyUserResultParams{
		Points:           newPoints,
		WonDelta:         wonDelta,
		LostDelta:        lostDelta,
		Winstreak:        int64(newStreak),
		LastPointsChange: delta,
		UpdatedAt:        time.Now(),
		ID:               id,
	})
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", id).Msg("failed to apply match result to user")
		return fmt.Errorf("failed to apply result for user %s: %w", id, err)
	}
	return nil
}

func toDomainUser(u db.User) *domain.User {
	return &domain.User{
		ID:               u.ID,
		Username:         u.Username,
		Points:           u.Points,
		Wins:             int(u.Wins),
		Losses:           int(u.Losses),
		Winstreak:        int(u.Winstreak),
		LastPointsChange: u.LastPointsChange,
		IsBot:            u.IsBot,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}
