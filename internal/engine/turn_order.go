package engine

import "fmt"

// BanOrder fixes which team bans at each ban step when teams get more than one ban.
// A is the roll winner, B the other team.
type BanOrder string

const (
	BanOrderNotApplicable BanOrder = ""
	BanOrderAABB          BanOrder = "AABB"
	BanOrderABAB          BanOrder = "ABAB"
	BanOrderABBA          BanOrder = "ABBA"
)

func (o BanOrder) Valid() bool {
	switch o {
	case BanOrderNotApplicable, BanOrderAABB, BanOrderABAB, BanOrderABBA:
		return true
	}
	return false
}

func ParseBanOrder(s string) (BanOrder, error) {
	o := BanOrder(s)
	if s == "none" || s == "na" {
		o = BanOrderNotApplicable
	}
	if !o.Valid() {
		return "", fmt.Errorf("unknown ban order %q", s)
	}
	return o, nil
}

// BanThreshold is the number of bans after which the draft moves to picks.
func BanThreshold(r Rules) int {
	return 2 * r.BansPerTeam
}

func rollWinner(r Rules) Team {
	if r.RollWinner.Valid() {
		return r.RollWinner
	}
	return TeamRed
}

func InitialTurn(r Rules) TurnStep {
	if BanThreshold(r) == 0 {
		return TurnStep{Team: rollWinner(r), Action: ActionPick}
	}
	return TurnStep{Team: rollWinner(r), Action: ActionBan}
}

// NextTurn decides the turn after the last entry of choices was recorded.
//
//	last was a ban and bans >= threshold -> same team picks
//	otherwise                            -> other team, pick once bans >= threshold else ban
func NextTurn(choices []Choice, r Rules) TurnStep {
	if len(choices) == 0 {
		return InitialTurn(r)
	}
	last := choices[len(choices)-1]
	bans := countBans(choices)
	threshold := BanThreshold(r)

	if last.Action == ActionBan && bans >= threshold {
		return TurnStep{Team: last.Team, Action: ActionPick}
	}
	if bans >= threshold {
		return TurnStep{Team: last.Team.Opposite(), Action: ActionPick}
	}

	team := last.Team.Opposite()
	if r.BanOrder != BanOrderNotApplicable {
		team = banOrderTeam(r, bans)
	}
	return TurnStep{Team: team, Action: ActionBan}
}

// DeriveTurn recomputes the turn purely from the recorded sequence.
func DeriveTurn(choices []Choice, r Rules) TurnStep {
	return NextTurn(choices, r)
}

// banOrderTeam returns the team for the ban at 0-based position idx.
func banOrderTeam(r Rules, idx int) Team {
	a := rollWinner(r)
	b := a.Opposite()
	n := r.BansPerTeam
	if n <= 0 {
		return a
	}

	switch r.BanOrder {
	case BanOrderAABB:
		if idx < n {
			return a
		}
		return b
	case BanOrderABBA:
		// pairs: AB, BA, AB, ...
		pair, second := idx/2, idx%2 == 1
		if (pair%2 == 0) != second {
			return a
		}
		return b
	default:
		if idx%2 == 0 {
			return a
		}
		return b
	}
}
