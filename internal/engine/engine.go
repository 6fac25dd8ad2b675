// Package engine holds the pure match state machine. Every function takes a
// match value and returns the mutated copy; callers (the hub room) serialize
// application, so the engine itself needs no locking.
package engine

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"valorant-hub/internal/constants"
	"valorant-hub/internal/domain"
)

var (
	ErrWrongPhase       = errors.New("operation not legal in current phase")
	ErrWrongTurn        = errors.New("not your turn")
	ErrNotParticipant   = errors.New("not a participant of this match")
	ErrNotCaptain       = errors.New("only the current captain may act")
	ErrIllegalPick      = errors.New("player not in remaining pool")
	ErrIllegalBan       = errors.New("map not in remaining pool")
	ErrVetoComplete     = errors.New("veto already converged to a single map")
	ErrDuplicateReport  = errors.New("player already submitted a report")
	ErrReportTooEarly   = errors.New("score reporting not yet open")
	ErrAlreadyFinalized = errors.New("match already finalized")
)

// ValidationError carries a human-readable reason for a rejected input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NewMatch builds the initial READY_CHECK aggregate. Bots auto-accept at
// creation; the ready window starts immediately.
func NewMatch(id string, players []domain.MatchPlayer, now time.Time) (domain.Match, error) {
	if len(players) != constants.QueueSize {
		return domain.Match{}, fmt.Errorf("match requires exactly %d players, got %d", constants.QueueSize, len(players))
	}

	m := domain.Match{
		ID:             id,
		Phase:          domain.PhaseReadyCheck,
		Players:        slices.Clone(players),
		ReadyExpiresAt: now.Add(constants.ReadyCheckWindow),
		CreatedAt:      now,
	}
	for _, p := range players {
		if p.IsBot {
			m.ReadyPlayers = append(m.ReadyPlayers, p.UserID)
		}
	}
	return m, nil
}

// Accept marks a player ready. A second accept from the same player is a
// no-op, not an error. When all ten players are ready the draft starts.
func Accept(m domain.Match, playerID string, now time.Time) (domain.Match, error) {
	if m.Phase != domain.PhaseReadyCheck {
		return m, ErrWrongPhase
	}
	if !m.IsParticipant(playerID) {
		return m, ErrNotParticipant
	}
	if !slices.Contains(m.ReadyPlayers, playerID) {
		m.ReadyPlayers = append(slices.Clone(m.ReadyPlayers), playerID)
	}
	if AllReady(m) {
		return StartDraft(m)
	}
	return m, nil
}

func AllReady(m domain.Match) bool {
	return len(m.ReadyPlayers) == len(m.Players)
}

func ReadyExpired(m domain.Match, now time.Time) bool {
	return m.Phase == domain.PhaseReadyCheck && now.After(m.ReadyExpiresAt)
}

// StartDraft assigns the two highest-rated players as captains (ties broken
// by user ID ascending, so the assignment is deterministic), seeds each team
// with its captain and hands the first pick to captain B.
func StartDraft(m domain.Match) (domain.Match, error) {
	if m.Phase != domain.PhaseReadyCheck {
		return m, ErrWrongPhase
	}

	ranked := slices.Clone(m.Players)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Points != ranked[j].Points {
			return ranked[i].Points > ranked[j].Points
		}
		return ranked[i].UserID < ranked[j].UserID
	})

	m.Phase = domain.PhaseDraft
	m.CaptainA = ranked[0].UserID
	m.CaptainB = ranked[1].UserID
	m.TeamA = []string{m.CaptainA}
	m.TeamB = []string{m.CaptainB}
	m.Turn = domain.TeamB

	m.RemainingPool = nil
	for _, p := range m.Players {
		if p.UserID != m.CaptainA && p.UserID != m.CaptainB {
			m.RemainingPool = append(m.RemainingPool, p.UserID)
		}
	}
	return m, nil
}

// DraftPick moves a pool player onto the current-turn captain's team and
// flips the turn. The pick that empties the pool advances the match to VETO,
// where captain A bans first.
func DraftPick(m domain.Match, captainID, playerID string) (domain.Match, error) {
	if m.Phase != domain.PhaseDraft {
		return m, ErrWrongPhase
	}
	if captainID != m.CaptainA && captainID != m.CaptainB {
		return m, ErrNotCaptain
	}
	if captainID != m.CurrentCaptain() {
		return m, ErrWrongTurn
	}
	idx := slices.Index(m.RemainingPool, playerID)
	if idx < 0 {
		return m, ErrIllegalPick
	}

	pool := slices.Clone(m.RemainingPool)
	pool = slices.Delete(pool, idx, idx+1)
	m.RemainingPool = pool

	if m.Turn == domain.TeamA {
		m.TeamA = append(slices.Clone(m.TeamA), playerID)
		m.Turn = domain.TeamB
	} else {
		m.TeamB = append(slices.Clone(m.TeamB), playerID)
		m.Turn = domain.TeamA
	}

	if len(m.RemainingPool) == 0 {
		m.Phase = domain.PhaseVeto
		m.RemainingMaps = slices.Clone(MapPool)
		m.Turn = domain.TeamA
	}
	return m, nil
}

// VetoBan removes a map from the remaining pool and flips the turn. The ban
// that leaves exactly one map sets the selection and does not flip the turn;
// the caller is expected to schedule the LIVE transition.
func VetoBan(m domain.Match, captainID, mapName string) (domain.Match, error) {
	if m.Phase != domain.PhaseVeto {
		return m, ErrWrongPhase
	}
	if m.SelectedMap != "" || len(m.RemainingMaps) <= 1 {
		return m, ErrVetoComplete
	}
	if captainID != m.CaptainA && captainID != m.CaptainB {
		return m, ErrNotCaptain
	}
	if captainID != m.CurrentCaptain() {
		return m, ErrWrongTurn
	}
	idx := slices.Index(m.RemainingMaps, mapName)
	if idx < 0 {
		return m, ErrIllegalBan
	}

	maps := slices.Clone(m.RemainingMaps)
	maps = slices.Delete(maps, idx, idx+1)
	m.RemainingMaps = maps
	m.BannedMaps = append(slices.Clone(m.BannedMaps), domain.BanRecord{
		Map:      mapName,
		BannedBy: captainID,
		Team:     m.Turn,
	})

	if len(m.RemainingMaps) == 1 {
		m.SelectedMap = m.RemainingMaps[0]
		return m, nil
	}

	if m.Turn == domain.TeamA {
		m.Turn = domain.TeamB
	} else {
		m.Turn = domain.TeamA
	}
	return m, nil
}

// StartLive fixes the selected map and start time. Legal only once veto has
// converged.
func StartLive(m domain.Match, now time.Time) (domain.Match, error) {
	if m.Phase != domain.PhaseVeto || m.SelectedMap == "" {
		return m, ErrWrongPhase
	}
	m.Phase = domain.PhaseLive
	m.StartTime = now
	return m, nil
}

// SubmitReport appends one score report. Legal only in LIVE, after the
// report gate has elapsed, from a participant who has not reported yet.
func SubmitReport(m domain.Match, playerID string, scoreA, scoreB int, now time.Time) (domain.Match, error) {
	if m.Phase == domain.PhaseFinished || m.ResultReported {
		return m, ErrAlreadyFinalized
	}
	if m.Phase != domain.PhaseLive {
		return m, ErrWrongPhase
	}
	if !m.IsParticipant(playerID) {
		return m, ErrNotParticipant
	}
	if now.Sub(m.StartTime) < constants.ReportGate {
		return m, ErrReportTooEarly
	}
	if err := ValidateScore(scoreA, scoreB); err != nil {
		return m, err
	}
	for _, r := range m.PlayerReports {
		if r.PlayerID == playerID {
			return m, ErrDuplicateReport
		}
	}

	m.PlayerReports = append(slices.Clone(m.PlayerReports), domain.PlayerReport{
		PlayerID:   playerID,
		ScoreA:     scoreA,
		ScoreB:     scoreB,
		ReportedAt: now,
	})
	return m, nil
}

func ValidateScore(scoreA, scoreB int) error {
	if scoreA < 0 || scoreB < 0 {
		return &ValidationError{Reason: "scores must be non-negative"}
	}
	if scoreA == scoreB {
		return &ValidationError{Reason: "a match cannot end in a draw"}
	}
	if max(scoreA, scoreB) < constants.MinWinningScore {
		return &ValidationError{Reason: fmt.Sprintf("winning score must be at least %d rounds", constants.MinWinningScore)}
	}
	return nil
}

// Consensus groups reports by exact score pair and returns the agreed result
// once any group reaches the quorum.
func Consensus(m domain.Match) (scoreA, scoreB int, ok bool) {
	type pair struct{ a, b int }
	counts := make(map[pair]int)
	for _, r := range m.PlayerReports {
		p := pair{r.ScoreA, r.ScoreB}
		counts[p]++
		if counts[p] >= constants.ReportQuorum {
			return p.a, p.b, true
		}
	}
	return 0, 0, false
}

// ConsensusTally reports the size of the largest agreeing group and how many
// more matching reports it needs, for the "N more needed" display.
func ConsensusTally(m domain.Match) (leading, needed int) {
	type pair struct{ a, b int }
	counts := make(map[pair]int)
	for _, r := range m.PlayerReports {
		p := pair{r.ScoreA, r.ScoreB}
		counts[p]++
		if counts[p] > leading {
			leading = counts[p]
		}
	}
	needed = constants.ReportQuorum - leading
	if needed < 0 {
		needed = 0
	}
	return leading, needed
}

// Finalize flips the result latch and fixes the winner. It is the only
// transition into FINISHED and returns ErrAlreadyFinalized when the latch is
// already set, so concurrent observers of the same quorum collapse to one
// winner.
func Finalize(m domain.Match, scoreA, scoreB int, pointsChanges map[string]float64) (domain.Match, error) {
	if m.ResultReported || m.Phase == domain.PhaseFinished {
		return m, ErrAlreadyFinalized
	}
	if m.Phase != domain.PhaseLive {
		return m, ErrWrongPhase
	}

	if scoreA > scoreB {
		m.Winner = domain.TeamA
	} else {
		m.Winner = domain.TeamB
	}
	m.PlayerPointsChanges = pointsChanges
	m.ResultReported = true
	m.Phase = domain.PhaseFinished
	return m, nil
}

// AgreedScore returns the quorum score pair for a finished match.
func AgreedScore(m domain.Match) (int, int) {
	a, b, ok := Consensus(m)
	if !ok {
		return 0, 0
	}
	return a, b
}
