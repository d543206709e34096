package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DoyleJ11/tourney-draft-backend/internal/pool"
)

func TestCompute_Accuracy(t *testing.T) {
	m := Compute(Values{Accuracy1: 60, Accuracy2: 40}, pool.WinAccuracy)

	assert.Equal(t, Side1, m.WinningSide)
	assert.InDelta(t, 20, m.Diff, 1e-9)
	assert.InDelta(t, math.Min(0.4, math.Pow(20.0/8, 0.7)/2), m.LeadFraction, 1e-9)
	assert.True(t, m.Side1Winning)
	assert.False(t, m.Side2Winning)
	assert.True(t, m.AccuracyDiffVisible)
	assert.Equal(t, Side1, m.AccuracyLeader)
}

func TestCompute_AccuracySmallLeadIsVisible(t *testing.T) {
	m := Compute(Values{Accuracy1: 97.10, Accuracy2: 97.60}, pool.WinAccuracy)

	assert.Equal(t, Side2, m.WinningSide)
	assert.Greater(t, m.LeadFraction, 0.0)
	assert.Less(t, m.LeadFraction, 0.4)
}

func TestCompute_AccuracyWithinTolerance(t *testing.T) {
	m := Compute(Values{Accuracy1: 98.501, Accuracy2: 98.499}, pool.WinAccuracy)

	assert.True(t, m.Side1Winning)
	assert.True(t, m.Side2Winning, "within 0.005 both sides are marked")
	assert.False(t, m.AccuracyDiffVisible, "diff counter hidden under 0.01")
}

// Ties and side1 <= side2 resolve to side2. Kept as-is from the score display
// this mirrors; there is no symmetric tie state.
func TestCompute_ScoreTieBreakQuirk(t *testing.T) {
	m := Compute(Values{Score1: 10, Score2: 10}, pool.WinScore)

	assert.Equal(t, Side2, m.WinningSide)
	assert.True(t, m.Side1Winning)
	assert.True(t, m.Side2Winning)
	assert.Zero(t, m.LeadFraction)
	assert.False(t, m.ScoreDiffVisible)
}

func TestCompute_Score(t *testing.T) {
	cases := []struct {
		name   string
		values Values
		winner Side
		lead   float64
	}{
		{name: "side1 ahead", values: Values{Score1: 500_000, Score2: 499_968}, winner: Side1, lead: math.Pow(1, 0.75) / 2},
		{name: "side2 ahead", values: Values{Score1: 100, Score2: 132}, winner: Side2, lead: math.Pow(1, 0.75) / 2},
		{name: "saturates", values: Values{Score1: 1_000_000, Score2: 0}, winner: Side1, lead: 0.4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Compute(tc.values, pool.WinScore)
			assert.Equal(t, tc.winner, m.WinningSide)
			assert.InDelta(t, math.Min(0.4, tc.lead), m.LeadFraction, 1e-9)
			assert.False(t, m.Side1Winning && m.Side2Winning)
		})
	}
}

func TestCompute_MissCount(t *testing.T) {
	m := Compute(Values{Misses1: 2, Misses2: 5}, pool.WinMissCount)
	assert.Equal(t, Side1, m.WinningSide, "fewer misses leads")
	assert.InDelta(t, 3, m.Diff, 1e-9)

	m = Compute(Values{Misses1: 4, Misses2: 4}, pool.WinMissCount)
	assert.Equal(t, Side2, m.WinningSide)
	assert.True(t, m.Side1Winning && m.Side2Winning)
}

func TestAggregator_SwapBeforeRecompute(t *testing.T) {
	a := NewAggregator()
	assert.Equal(t, pool.WinScore, a.Condition())

	_, changed := a.Update(Values{Score1: 10, Score2: 20, Accuracy1: 99, Accuracy2: 90})
	assert.True(t, changed)
	_, changed = a.Update(Values{Score1: 10, Score2: 20, Accuracy1: 99, Accuracy2: 90})
	assert.False(t, changed, "same values, nothing to emit")

	_, swapped := a.SetCondition(pool.WinScore)
	assert.False(t, swapped)

	swap, swapped := a.SetCondition(pool.WinAccuracy)
	assert.True(t, swapped)
	assert.Equal(t, Swap{From: pool.WinScore, To: pool.WinAccuracy}, swap)

	m, changed := a.Recompute()
	assert.True(t, changed)
	assert.Equal(t, Side1, m.WinningSide)
	assert.Equal(t, m, a.Metrics())
}
