package engine

func NewEmptyState(rules Rules) State {
	return State{
		Choices: nil,
		Turn:    InitialTurn(rules),
		Rules:   rules,
	}
}

func DefaultRules() Rules {
	return Rules{BansPerTeam: 1, BanOrder: BanOrderNotApplicable, RollWinner: TeamRed}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// PickAdded reports whether events record a new pick.
func PickAdded(events []Event) bool {
	for _, event := range events {
		if event.Type == EvtChoiceAdded && event.Action == ActionPick {
			return true
		}
	}
	return false
}

func (s State) Bans() int  { return countBans(s.Choices) }
func (s State) Picks() int { return countPicks(s.Choices) }

// ChoicesFor returns the beatmap ids a team recorded with the given action, in order.
func (s State) ChoicesFor(team Team, action Action) []int {
	var ids []int
	for _, c := range s.Choices {
		if c.Team == team && c.Action == action {
			ids = append(ids, c.BeatmapID)
		}
	}
	return ids
}
