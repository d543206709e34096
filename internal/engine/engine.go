package engine

import (
	"errors"
	"slices"
)

var ErrNoActiveRound = errors.New("no active round")
var ErrNotInPool = errors.New("beatmap not in pool")
var ErrAlreadyChosen = errors.New("beatmap already chosen")
var ErrNotChosen = errors.New("beatmap has no choice")
var ErrBanPhase = errors.New("ban phase not complete")
var ErrUnsupportedCommand = errors.New("unsupported command")

// Team is one side of the match. Red is side 1, blue is side 2.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

func (t Team) Opposite() Team {
	if t == TeamRed {
		return TeamBlue
	}
	return TeamRed
}

func (t Team) Valid() bool {
	return t == TeamRed || t == TeamBlue
}

type Action string

const (
	ActionBan  Action = "ban"
	ActionPick Action = "pick"
)

func (a Action) Valid() bool {
	return a == ActionBan || a == ActionPick
}

type TurnStep struct {
	Team   Team   `json:"team"`
	Action Action `json:"action"`
}

type Choice struct {
	Team      Team   `json:"team"`
	Action    Action `json:"action"`
	BeatmapID int    `json:"beatmap_id"`
}

type Rules struct {
	BansPerTeam int      `json:"bans_per_team"`
	BanOrder    BanOrder `json:"ban_order"`
	RollWinner  Team     `json:"roll_winner"`
}

type State struct {
	Choices []Choice `json:"choices"`
	Turn    TurnStep `json:"turn"`
	Rules   Rules    `json:"rules"`
}

// Pool answers whether a beatmap may be chosen at all. A nil Pool means the
// match has no active round.
type Pool interface {
	Contains(beatmapID int) bool
}

type CommandType string

const (
	CmdSelectMode    CommandType = "SelectMode"
	CmdSubmitChoice  CommandType = "SubmitChoice"
	CmdRetract       CommandType = "Retract"
	CmdReset         CommandType = "Reset"
	CmdActiveBeatmap CommandType = "ActiveBeatmap"
)

/*
	CmdSelectMode    -> EvtTurnChanged
	CmdSubmitChoice  -> EvtChoiceAdded -> EvtTurnChanged
	CmdActiveBeatmap -> same as CmdSubmitChoice, but always a pick and only once bans are done
	CmdRetract       -> EvtChoiceRemoved -> EvtTurnChanged
	CmdReset         -> EvtChoiceRemoved (each) -> EvtDraftReset -> EvtTurnChanged
*/

type Command struct {
	Type      CommandType
	Team      Team
	Action    Action
	BeatmapID int
}

type EventType string

const (
	EvtChoiceAdded   EventType = "choice_added"
	EvtChoiceRemoved EventType = "choice_removed"
	EvtTurnChanged   EventType = "turn_changed"
	EvtDraftReset    EventType = "draft_reset"
)

type Event struct {
	Type      EventType
	Team      Team
	Action    Action
	BeatmapID int
}

// Apply runs one draft command against s. On error the returned state is s
// unchanged and no events are produced.
func Apply(s State, p Pool, cmd Command) ([]Event, State, error) {
	switch cmd.Type {
	case CmdSelectMode:
		if !cmd.Team.Valid() || !cmd.Action.Valid() {
			return nil, s, ErrUnsupportedCommand
		}
		newState := s
		newState.Turn = TurnStep{Team: cmd.Team, Action: cmd.Action}
		return turnEvents(nil, s.Turn, newState.Turn), newState, nil

	case CmdSubmitChoice:
		return addChoice(s, p, Choice{Team: s.Turn.Team, Action: s.Turn.Action, BeatmapID: cmd.BeatmapID})

	case CmdActiveBeatmap:
		// Changing the displayed beatmap during the pick phase is itself a pick.
		if countBans(s.Choices) < BanThreshold(s.Rules) {
			return nil, s, ErrBanPhase
		}
		if cmd.BeatmapID <= 0 {
			return nil, s, ErrNotInPool
		}
		return addChoice(s, p, Choice{Team: s.Turn.Team, Action: ActionPick, BeatmapID: cmd.BeatmapID})

	case CmdRetract:
		idx := slices.IndexFunc(s.Choices, func(c Choice) bool { return c.BeatmapID == cmd.BeatmapID })
		if idx < 0 {
			return nil, s, ErrNotChosen
		}
		removed := s.Choices[idx]

		newState := s
		newState.Choices = slices.Delete(slices.Clone(s.Choices), idx, idx+1)
		newState.Turn = DeriveTurn(newState.Choices, s.Rules)

		events := []Event{choiceEvent(EvtChoiceRemoved, removed)}
		return turnEvents(events, s.Turn, newState.Turn), newState, nil

	case CmdReset:
		events := make([]Event, 0, len(s.Choices)+2)
		for _, c := range s.Choices {
			events = append(events, choiceEvent(EvtChoiceRemoved, c))
		}
		events = append(events, Event{Type: EvtDraftReset})

		newState := s
		newState.Choices = nil
		newState.Turn = InitialTurn(s.Rules)
		return turnEvents(events, s.Turn, newState.Turn), newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func addChoice(s State, p Pool, c Choice) ([]Event, State, error) {
	if p == nil {
		return nil, s, ErrNoActiveRound
	}
	if !p.Contains(c.BeatmapID) {
		return nil, s, ErrNotInPool
	}
	if hasChoice(s, c.BeatmapID) {
		return nil, s, ErrAlreadyChosen
	}

	newState := s
	// Clone so snapshots handed out earlier never see this append.
	newState.Choices = append(slices.Clone(s.Choices), c)
	newState.Turn = NextTurn(newState.Choices, s.Rules)

	events := []Event{choiceEvent(EvtChoiceAdded, c)}
	return turnEvents(events, s.Turn, newState.Turn), newState, nil
}

func choiceEvent(t EventType, c Choice) Event {
	return Event{Type: t, Team: c.Team, Action: c.Action, BeatmapID: c.BeatmapID}
}

func turnEvents(events []Event, before, after TurnStep) []Event {
	if before == after {
		return events
	}
	return append(events, Event{Type: EvtTurnChanged, Team: after.Team, Action: after.Action})
}

// Restore rebuilds a draft from a persisted choice log. Later duplicates of a
// beatmap are dropped so a corrupted log can't break the one-choice-per-map rule.
func Restore(choices []Choice, rules Rules) State {
	s := NewEmptyState(rules)
	for _, c := range choices {
		if hasChoice(s, c.BeatmapID) || !c.Team.Valid() || !c.Action.Valid() {
			continue
		}
		s.Choices = append(s.Choices, c)
	}
	s.Turn = DeriveTurn(s.Choices, rules)
	return s
}

func hasChoice(s State, id int) bool {
	return slices.ContainsFunc(s.Choices, func(c Choice) bool { return c.BeatmapID == id })
}

func countBans(choices []Choice) int {
	n := 0
	for _, c := range choices {
		if c.Action == ActionBan {
			n++
		}
	}
	return n
}

func countPicks(choices []Choice) int {
	return len(choices) - countBans(choices)
}
