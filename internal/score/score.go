// Package score derives the lead bar and winner markers shown during gameplay.
package score

import (
	"math"

	"github.com/DoyleJ11/tourney-draft-backend/internal/pool"
)

const (
	maxLead           = 0.4
	accuracyTolerance = 0.005
	// osu! reports accuracy to two decimals
	accuracyDiffVisible = 0.01
)

type Side int

const (
	Side1 Side = 1
	Side2 Side = 2
)

type Values struct {
	Score1    int64   `json:"score1"`
	Score2    int64   `json:"score2"`
	Accuracy1 float64 `json:"accuracy1"`
	Accuracy2 float64 `json:"accuracy2"`
	Misses1   int     `json:"misses1"`
	Misses2   int     `json:"misses2"`
}

type Metrics struct {
	Condition    pool.WinCondition `json:"condition"`
	Diff         float64           `json:"diff"`
	LeadFraction float64           `json:"lead_fraction"`
	WinningSide  Side              `json:"winning_side"`
	// Both flags are set when the sides are level within tolerance.
	Side1Winning bool `json:"side1_winning"`
	Side2Winning bool `json:"side2_winning"`

	ScoreDiff           int64   `json:"score_diff"`
	ScoreDiffVisible    bool    `json:"score_diff_visible"`
	AccuracyDiff        float64 `json:"accuracy_diff"`
	AccuracyDiffVisible bool    `json:"accuracy_diff_visible"`
	// Leaders anchor the diff counters; side2 when level.
	ScoreLeader    Side `json:"score_leader"`
	AccuracyLeader Side `json:"accuracy_leader"`
}

// Compute is pure: same inputs, same metrics.
func Compute(v Values, cond pool.WinCondition) Metrics {
	m := Metrics{Condition: cond}

	var level bool
	switch cond {
	case pool.WinAccuracy:
		m.Diff = math.Abs(v.Accuracy1 - v.Accuracy2)
		m.LeadFraction = lead(m.Diff, 8, 0.7)
		m.WinningSide = Side2
		if v.Accuracy1 > v.Accuracy2 {
			m.WinningSide = Side1
		}
		level = m.Diff < accuracyTolerance

	case pool.WinMissCount:
		m.Diff = math.Abs(float64(v.Misses1 - v.Misses2))
		m.LeadFraction = lead(m.Diff, 32, 0.75)
		m.WinningSide = Side2
		if v.Misses1 < v.Misses2 {
			m.WinningSide = Side1
		}
		level = v.Misses1 == v.Misses2

	default:
		m.Diff = math.Abs(float64(v.Score1 - v.Score2))
		m.LeadFraction = lead(m.Diff, 32, 0.75)
		// side1 <= side2 goes to side2, ties included; there is no tie state
		m.WinningSide = Side1
		if v.Score1 <= v.Score2 {
			m.WinningSide = Side2
		}
		level = v.Score1 == v.Score2
	}

	m.Side1Winning = m.WinningSide == Side1 || level
	m.Side2Winning = m.WinningSide == Side2 || level

	m.ScoreDiff = v.Score1 - v.Score2
	if m.ScoreDiff < 0 {
		m.ScoreDiff = -m.ScoreDiff
	}
	m.ScoreDiffVisible = m.ScoreDiff != 0
	m.ScoreLeader = Side2
	if v.Score1 > v.Score2 {
		m.ScoreLeader = Side1
	}

	m.AccuracyDiff = math.Abs(v.Accuracy1 - v.Accuracy2)
	m.AccuracyDiffVisible = m.AccuracyDiff >= accuracyDiffVisible
	m.AccuracyLeader = Side2
	if v.Accuracy1 > v.Accuracy2 {
		m.AccuracyLeader = Side1
	}
	return m
}

// lead compresses a raw difference so small leads show and large ones saturate.
func lead(diff, scale, exp float64) float64 {
	return math.Min(maxLead, math.Pow(diff/scale, exp)/2)
}
