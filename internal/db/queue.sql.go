package db

import (
	"context"
	"time"
)

const insertQueueEntry = `
INSERT INTO queue_entries (user_id, username, joined_at)
VALUES (?, ?, ?)
ON CONFLICT (user_id) DO NOTHING
`

type InsertQueueEntryParams struct {
	UserID   string
	Username string
	JoinedAt time.Time
}

func (q *Queries) InsertQueueEntry(ctx context.Context, arg InsertQueueEntryParams) error {
	_, err := q.db.ExecContext(ctx, insertQueueEntry, arg.UserID, arg.Username, arg.JoinedAt)
	return err
}

const deleteQueueEntry = `
DELETE FROM queue_entries
WHERE user_id = ?
`

func (q *Queries) DeleteQueueEntry(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteQueueEntry, userID)
	return err
}

const listQueueEntries = `
SELECT user_id, username, joined_at
FROM queue_entries
ORDER BY joined_at ASC, user_id ASC
`

func (q *Queries) ListQueueEntries(ctx context.Context) ([]QueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, listQueueEntries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.JoinedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const countQueueEntries = `
SELECT COUNT(*)
FROM queue_entries
`

func (q *Queries) CountQueueEntries(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countQueueEntries)
	var count int64
	err := row.Scan(&count)
	return count, err
}
