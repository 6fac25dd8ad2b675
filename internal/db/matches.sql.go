package db

import (
	"context"
	"time"
)

const insertActiveMatch = `
INSERT INTO active_matches (id, roster_key, phase, result_reported, snapshot, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?, ?)
`

type InsertActiveMatchParams struct {
	ID        string
	RosterKey string
	Phase     string
	Snapshot  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) InsertActiveMatch(ctx context.Context, arg InsertActiveMatchParams) error {
	_, err := q.db.ExecContext(ctx, insertActiveMatch,
		arg.ID,
		arg.RosterKey,
		arg.Phase,
		arg.Snapshot,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateActiveMatchSnapshot = `
UPDATE active_matches
SET phase = ?, snapshot = ?, updated_at = ?
WHERE id = ?
`

type UpdateActiveMatchSnapshotParams struct {
	Phase     string
	Snapshot  string
	UpdatedAt time.Time
	ID        string
}

func (q *Queries) UpdateActiveMatchSnapshot(ctx context.Context, arg UpdateActiveMatchSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, updateActiveMatchSnapshot,
		arg.Phase,
		arg.Snapshot,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const finalizeActiveMatch = `
UPDATE active_matches
SET phase = ?, result_reported = 1, snapshot = ?, updated_at = ?
WHERE id = ? AND result_reported = 0
`

type FinalizeActiveMatchParams struct {
	Phase     string
	Snapshot  string
	UpdatedAt time.Time
	ID        string
}

// FinalizeActiveMatch is a conditional write: it succeeds only while the
// result_reported latch is unset. The caller inspects RowsAffected to learn
// whether it won the finalize race.
func (q *Queries) FinalizeActiveMatch(ctx context.Context, arg FinalizeActiveMatchParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, finalizeActiveMatch,
		arg.Phase,
		arg.Snapshot,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteActiveMatch = `
DELETE FROM active_matches
WHERE id = ?
`

func (q *Queries) DeleteActiveMatch(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteActiveMatch, id)
	return err
}

const getActiveMatch = `
SELECT id, roster_key, phase, result_reported, snapshot, created_at, updated_at
FROM active_matches
WHERE id = ?
`

func (q *Queries) GetActiveMatch(ctx context.Context, id string) (ActiveMatch, error) {
	row := q.db.QueryRowContext(ctx, getActiveMatch, id)
	var m ActiveMatch
	err := row.Scan(
		&m.ID,
		&m.RosterKey,
		&m.Phase,
		&m.ResultReported,
		&m.Snapshot,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

const listOpenActiveMatches = `
SELECT id, roster_key, phase, result_reported, snapshot, created_at, updated_at
FROM active_matches
WHERE result_reported = 0
ORDER BY created_at
`

func (q *Queries) ListOpenActiveMatches(ctx context.Context) ([]ActiveMatch, error) {
	rows, err := q.db.QueryContext(ctx, listOpenActiveMatches)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []ActiveMatch
	for rows.Next() {
		var m ActiveMatch
		if err := rows.Scan(
			&m.ID,
			&m.RosterKey,
			&m.Phase,
			&m.ResultReported,
			&m.Snapshot,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

const insertMatchRecord = `
INSERT INTO matches (match_id, map, captain_a, captain_b, winner, score_a, score_b, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertMatchRecordParams struct {
	MatchID    string
	Map        string
	CaptainA   string
	CaptainB   string
	Winner     string
	ScoreA     int64
	ScoreB     int64
	StartedAt  time.Time
	FinishedAt time.Time
}

func (q *Queries) InsertMatchRecord(ctx context.Context, arg InsertMatchRecordParams) error {
	_, err := q.db.ExecContext(ctx, insertMatchRecord,
		arg.MatchID,
		arg.Map,
		arg.CaptainA,
		arg.CaptainB,
		arg.Winner,
		arg.ScoreA,
		arg.ScoreB,
		arg.StartedAt,
		arg.FinishedAt,
	)
	return err
}

const insertMatchRecordPlayer = `
INSERT INTO match_players (match_id, user_id, username, team, points_before, points_after)
VALUES (?, ?, ?, ?, ?, ?)
`

type InsertMatchRecordPlayerParams struct {
	MatchID      string
	UserID       string
	Username     string
	Team         string
	PointsBefore float64
	PointsAfter  float64
}

func (q *Queries) InsertMatchRecordPlayer(ctx context.Context, arg InsertMatchRecordPlayerParams) error {
	_, err := q.db.ExecContext(ctx, insertMatchRecordPlayer,
		arg.MatchID,
		arg.UserID,
		arg.Username,
		arg.Team,
		arg.PointsBefore,
		arg.PointsAfter,
	)
	return err
}

const getMatchRecord = `
SELECT match_id, map, captain_a, captain_b, winner, score_a, score_b, started_at, finished_at
FROM matches
WHERE match_id = ?
`

func (q *Queries) GetMatchRecord(ctx context.Context, matchID string) (Match, error) {
	row := q.db.QueryRowContext(ctx, getMatchRecord, matchID)
	var m Match
	err := row.Scan(
		&m.MatchID,
		&m.Map,
		&m.CaptainA,
		&m.CaptainB,
		&m.Winner,
		&m.ScoreA,
		&m.ScoreB,
		&m.StartedAt,
		&m.FinishedAt,
	)
	return m, err
}

const listMatchRecordPlayers = `
SELECT match_id, user_id, username, team, points_before, points_after
FROM match_players
WHERE match_id = ?
`

func (q *Queries) ListMatchRecordPlayers(ctx context.Context, matchID string) ([]MatchPlayer, error) {
	rows, err := q.db.QueryContext(ctx, listMatchRecordPlayers, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var players []MatchPlayer
	for rows.Next() {
		var p MatchPlayer
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.Username, &p.Team, &p.PointsBefore, &p.PointsAfter); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}
