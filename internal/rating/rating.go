// Package rating computes MMR deltas. Pure functions only, so the formula is
// testable independent of storage.
package rating

import (
	"valorant-hub/internal/constants"
	"valorant-hub/internal/domain"
)

// CalculatePoints returns a player's new point total after a match.
//
// Wins earn the base delta plus a streak bonus of 1.5 per consecutive win
// (counting this one), capped at 15. Losses cost the base delta, floored at
// zero.
//
// opponentAvg is accepted but currently unused; it is reserved for a future
// opponent-strength adjustment.
func CalculatePoints(current float64, won bool, priorStreak int, opponentAvg float64) float64 {
	_ = opponentAvg

	if won {
		bonus := float64(priorStreak+1) * constants.StreakBonusStep
		if bonus > constants.StreakBonusCap {
			bonus = constants.StreakBonusCap
		}
		return current + constants.BasePointsDelta + bonus
	}

	next := current - constants.BasePointsDelta
	if next < 0 {
		return 0
	}
	return next
}

// NextStreak returns the winstreak value after a result.
func NextStreak(priorStreak int, won bool) int {
	if won {
		return priorStreak + 1
	}
	return 0
}

// TeamAverage returns the mean points of the given roster, looked up in the
// match's embedded player snapshots.
func TeamAverage(m domain.Match, roster []string) float64 {
	if len(roster) == 0 {
		return 0
	}
	var sum float64
	for _, id := range roster {
		if p, ok := m.Player(id); ok {
			sum += p.Points
		}
	}
	return sum / float64(len(roster))
}
