package db

import "time"

type User struct {
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

type QueueEntry struct {
	UserID   string
	Username string
	JoinedAt time.Time
}

type ActiveMatch struct {
	ID             string
	RosterKey      string
	Phase          string
	ResultReported bool
	Snapshot       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Match struct {
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

type MatchPlayer struct {
	MatchID      string
	UserID       string
	Username     string
	Team         string
	PointsBefore float64
	PointsAfter  float64
}
