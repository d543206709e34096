package score

import "github.com/DoyleJ11/tourney-draft-backend/internal/pool"

// Swap tells a display which metric pair becomes primary.
type Swap struct {
	From pool.WinCondition `json:"from"`
	To   pool.WinCondition `json:"to"`
}

// Aggregator remembers the active win condition and the last metrics. It is
// not safe for concurrent use; the lobby loop owns it.
type Aggregator struct {
	cond   pool.WinCondition
	values Values
	last   Metrics
	primed bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{cond: pool.WinScore}
}

func (a *Aggregator) Condition() pool.WinCondition { return a.cond }
func (a *Aggregator) Metrics() Metrics             { return a.last }

// SetCondition switches the active condition. The returned Swap must be emitted
// before the recompute that follows.
func (a *Aggregator) SetCondition(c pool.WinCondition) (Swap, bool) {
	if c == a.cond {
		return Swap{}, false
	}
	s := Swap{From: a.cond, To: c}
	a.cond = c
	return s, true
}

// Update recomputes with new values. The bool is false when the metrics did not change.
func (a *Aggregator) Update(v Values) (Metrics, bool) {
	a.values = v
	return a.Recompute()
}

func (a *Aggregator) Recompute() (Metrics, bool) {
	m := Compute(a.values, a.cond)
	changed := !a.primed || m != a.last
	a.last = m
	a.primed = true
	return m, changed
}
