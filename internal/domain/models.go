package domain

import (
	"time"
)

type Phase string

const (
	PhaseReadyCheck Phase = "READY_CHECK"
	PhaseDraft      Phase = "DRAFT"
	PhaseVeto       Phase = "VETO"
	PhaseLive       Phase = "LIVE"
	PhaseFinished   Phase = "FINISHED"
)

type TeamSide string

const (
	TeamA TeamSide = "A"
	TeamB TeamSide = "B"
)

type User struct {
	ID               string
	Username         string
	Points           float64
	Wins             int
	Losses           int
	Winstreak        int
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

// MatchPlayer is the denormalized display snapshot embedded in a match,
// so bot and test participants render without a user record.
type MatchPlayer struct {
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Points    float64 `json:"points"`
	Winstreak int     `json:"winstreak"`
	IsBot     bool    `json:"is_bot"`
}

type BanRecord struct {
	Map      string   `json:"map"`
	BannedBy string   `json:"banned_by"`
	Team     TeamSide `json:"team"`
}

type PlayerReport struct {
	PlayerID   string    `json:"player_id"`
	ScoreA     int       `json:"score_a"`
	ScoreB     int       `json:"score_b"`
	ReportedAt time.Time `json:"reported_at"`
}

// Match is the central aggregate. All mutation goes through the engine
// transition functions; nothing else writes its fields.
type Match struct {
	ID             string    `json:"id"`
	Phase          Phase     `json:"phase"`
	Players        []MatchPlayer `json:"players"`
	ReadyPlayers   []string  `json:"ready_players"`
	ReadyExpiresAt time.Time `json:"ready_expires_at"`

	CaptainA      string   `json:"captain_a,omitempty"`
	CaptainB      string   `json:"captain_b,omitempty"`
	TeamA         []string `json:"team_a,omitempty"`
	TeamB         []string `json:"team_b,omitempty"`
	RemainingPool []string `json:"remaining_pool,omitempty"`
	Turn          TeamSide `json:"turn,omitempty"`

	RemainingMaps []string    `json:"remaining_maps,omitempty"`
	BannedMaps    []BanRecord `json:"banned_maps,omitempty"`
	SelectedMap   string      `json:"selected_map,omitempty"`

	StartTime time.Time `json:"start_time"`

	PlayerReports []PlayerReport `json:"player_reports,omitempty"`
	// PlayerPointsChanges maps user ID to the signed points delta applied at
	// finalize.
	PlayerPointsChanges map[string]float64 `json:"player_points_changes,omitempty"`
	Winner              TeamSide           `json:"winner,omitempty"`

	// ResultReported is a one-way latch: it transitions false -> true exactly
	// once, when the match is finalized.
	ResultReported bool `json:"result_reported"`

	CreatedAt time.Time `json:"created_at"`
}

func (m Match) Player(userID string) (MatchPlayer, bool) {
	for _, p := range m.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return MatchPlayer{}, false
}

func (m Match) IsParticipant(userID string) bool {
	_, ok := m.Player(userID)
	return ok
}

func (m Match) CurrentCaptain() string {
	if m.Turn == TeamA {
		return m.CaptainA
	}
	return m.CaptainB
}

// RosterKey is the idempotency key for match creation: the sorted set of
// player IDs. Two concurrent creation attempts for the same ten players
// collapse to one row.
func (m Match) RosterKey() string {
	return RosterKey(playerIDs(m.Players))
}

func playerIDs(players []MatchPlayer) []string {
	ids := make([]string, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}
	return ids
}

// MatchRecord is the immutable history snapshot written once at finalize.
type MatchRecord struct {
	MatchID     string
	Map         string
	CaptainA    string
	CaptainB    string
	Winner      TeamSide
	ScoreA      int
	ScoreB      int
	StartedAt   time.Time
	FinishedAt  time.Time
	Players     []MatchRecordPlayer
}

type MatchRecordPlayer struct {
	MatchID      string
	UserID       string
	Username     string
	Team         TeamSide
	PointsBefore float64
	PointsAfter  float64
}
