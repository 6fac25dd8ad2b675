package rating

import (
	"testing"
	"time"

	"valorant-hub/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePoints_Deterministic(t *testing.T) {
	cases := []struct {
		name        string
		current     float64
		won         bool
		priorStreak int
		want        float64
	}{
		{"first win gets base plus 1.5 streak bonus", 1000, true, 0, 1021.5},
		{"streak bonus grows per consecutive win", 1000, true, 3, 1026},
		{"streak bonus caps at 15", 1000, true, 20, 1035},
		{"loss costs the base delta", 1000, false, 5, 980},
		{"points floor at zero", 5, false, 0, 0},
		{"loss from exactly base delta lands on zero", 20, false, 2, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// opponentAvg is reserved: any value must give the same result.
			for _, avg := range []float64{0, 800, 2500} {
				got := CalculatePoints(tc.current, tc.won, tc.priorStreak, avg)
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNextStreak(t *testing.T) {
	assert.Equal(t, 1, NextStreak(0, true))
	assert.Equal(t, 6, NextStreak(5, true))
	assert.Equal(t, 0, NextStreak(5, false))
}

func TestComputeChanges(t *testing.T) {
	m := domain.Match{
		ID:    "m1",
		Phase: domain.PhaseLive,
		Players: []domain.MatchPlayer{
			{UserID: "a1", Points: 1200, Winstreak: 2},
			{UserID: "a2", Points: 1000},
			{UserID: "b1", Points: 1100},
			{UserID: "b2", Points: 10},
		},
		TeamA:     []string{"a1", "a2"},
		TeamB:     []string{"b1", "b2"},
		StartTime: time.Now(),
	}

	changes := ComputeChanges(m, 13, 7)

	// Signed deltas, not totals.
	assert.Equal(t, 20+4.5, changes["a1"])
	assert.Equal(t, 20+1.5, changes["a2"])
	assert.Equal(t, -20.0, changes["b1"])
	// The zero floor shrinks the loss delta.
	assert.Equal(t, -10.0, changes["b2"])
}
