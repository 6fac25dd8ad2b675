package rating

import (
	"slices"

	"valorant-hub/internal/domain"
)

// ComputeChanges returns every participant's signed points delta, computed
// purely from the match aggregate's embedded player snapshots. Called exactly
// once, at finalize.
func ComputeChanges(m domain.Match, scoreA, scoreB int) map[string]float64 {
	teamAWon := scoreA > scoreB

	avgA := TeamAverage(m, m.TeamA)
	avgB := TeamAverage(m, m.TeamB)

	changes := make(map[string]float64, len(m.Players))
	for _, p := range m.Players {
		onTeamA := slices.Contains(m.TeamA, p.UserID)
		won := onTeamA == teamAWon

		opponentAvg := avgB
		if !onTeamA {
			opponentAvg = avgA
		}
		changes[p.UserID] = CalculatePoints(p.Points, won, p.Winstreak, opponentAvg) - p.Points
	}
	return changes
}
