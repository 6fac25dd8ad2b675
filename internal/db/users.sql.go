package db

import (
	"context"
	"time"
)

const getUserByID = `
SELECT id, username, points, wins, losses, winstreak, last_points_change, is_bot, created_at, updated_at
FROM users
WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Points,
		&u.Wins,
		&u.Losses,
		&u.Winstreak,
		&u.LastPointsChange,
		&u.IsBot,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

const upsertUser = `
INSERT INTO users (id, username, points, wins, losses, winstreak, last_points_change, is_bot, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    username = excluded.username,
    updated_at = excluded.updated_at
`

type UpsertUserParams struct {
	ID               string
	Username         string
	Points           float64
	Wins             int64
	Losses           int64
	Winstreak        int64
	LastPointsChange float64
	IsBot            bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (q *Queries) UpsertUser(ctx context.Context, arg UpsertUserParams) error {
	_, err := q.db.ExecContext(ctx, upsertUser,
		arg.ID,
		arg.Username,
		arg.Points,
		arg.Wins,
		arg.Losses,
		arg.Winstreak,
		arg.LastPointsChange,
		arg.IsBot,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const applyUserResult = `
UPDATE users
SET points = ?,
    wins = wins + ?,
    losses = losses + ?,
    winstreak = ?,
    last_points_change = ?,
    updated_at = ?
WHERE id = ?
`

type ApplyUserResultParams struct {
	Points           float64
	WonDelta         int64
	LostDelta        int64
	Winstreak        int64
	LastPointsChange float64
	UpdatedAt        time.Time
	ID               string
}

func (q *Queries) ApplyUserResult(ctx context.Context, arg ApplyUserResultParams) error {
	_, err := q.db.ExecContext(ctx, applyUserResult,
		arg.Points,
		arg.WonDelta,
		arg.LostDelta,
		arg.Winstreak,
		arg.LastPointsChange,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}
