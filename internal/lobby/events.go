package lobby

import (
	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/score"
)

const (
	EvtChoiceAdded          = string(engine.EvtChoiceAdded)
	EvtChoiceRemoved        = string(engine.EvtChoiceRemoved)
	EvtTurnChanged          = string(engine.EvtTurnChanged)
	EvtDraftReset           = string(engine.EvtDraftReset)
	EvtActiveBeatmapChanged = "active_beatmap_changed"
	EvtTelemetryUpdated     = "telemetry_updated"
	EvtScoreMetricsUpdated  = "score_metrics_updated"
	EvtWinConditionSwapped  = "win_condition_swapped"
	EvtGameplayReady        = "gameplay_ready"
	EvtRoundChanged         = "round_changed"
)

// Event is what clients see in a snapshot's event list.
type Event struct {
	Type      string        `json:"type"`
	Team      engine.Team   `json:"team,omitempty"`
	Action    engine.Action `json:"action,omitempty"`
	BeatmapID int           `json:"beatmap_id,omitempty"`
	Swap      *score.Swap   `json:"swap,omitempty"`
}

func fromEngine(evs []engine.Event) []Event {
	out := make([]Event, 0, len(evs))
	for _, e := range evs {
		out = append(out, Event{Type: string(e.Type), Team: e.Team, Action: e.Action, BeatmapID: e.BeatmapID})
	}
	return out
}

func EventTypes(events []Event) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}
