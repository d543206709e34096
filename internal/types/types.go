package types

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/lobby"
	"github.com/DoyleJ11/tourney-draft-backend/internal/score"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
)

var (
	ErrUnknownType = errors.New("unknown type")
	ErrBadTeam     = errors.New("bad team")
	ErrBadAction   = errors.New("bad action")
	ErrBadBeatmap  = errors.New("beatmap_id is required")
)

type ClientMessage struct {
	Type      string `json:"type"` // "SelectMode" | "SubmitChoice" | "Retract" | "Reset"
	Team      string `json:"team,omitempty"`
	Action    string `json:"action,omitempty"`
	BeatmapID int    `json:"beatmap_id,omitempty"`
}

type ServerMessage struct {
	Type          string              `json:"type"` // "StateSnapshot" | "Error"
	Version       int                 `json:"version,omitempty"`
	Match         *lobby.Match        `json:"match,omitempty"`
	State         *engine.State       `json:"state,omitempty"`
	Events        []lobby.Event       `json:"events,omitempty"`
	Telemetry     *telemetry.Snapshot `json:"telemetry,omitempty"`
	Metrics       *score.Metrics      `json:"metrics,omitempty"`
	GameplayReady bool                `json:"gameplay_ready,omitempty"`
	Error         string              `json:"error,omitempty"`
}

func SnapshotMessage(s lobby.Snapshot) ServerMessage {
	return ServerMessage{
		Type:          "StateSnapshot",
		Version:       s.Version,
		Match:         &s.Match,
		State:         &s.State,
		Events:        s.Events,
		Telemetry:     &s.Telemetry,
		Metrics:       &s.Metrics,
		GameplayReady: s.GameplayReady,
	}
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: "Error", Error: err.Error()}
}

// Command turns a client message into an engine command.
func (m ClientMessage) Command() (engine.Command, error) {
	switch m.Type {
	case "SelectMode":
		team := engine.Team(m.Team)
		if !team.Valid() {
			return engine.Command{}, fmt.Errorf("%w: %q", ErrBadTeam, m.Team)
		}
		action := engine.Action(m.Action)
		if !action.Valid() {
			return engine.Command{}, fmt.Errorf("%w: %q", ErrBadAction, m.Action)
		}
		return engine.Command{Type: engine.CmdSelectMode, Team: team, Action: action}, nil
	case "SubmitChoice":
		if m.BeatmapID <= 0 {
			return engine.Command{}, ErrBadBeatmap
		}
		return engine.Command{Type: engine.CmdSubmitChoice, BeatmapID: m.BeatmapID}, nil
	case "Retract":
		if m.BeatmapID <= 0 {
			return engine.Command{}, ErrBadBeatmap
		}
		return engine.Command{Type: engine.CmdRetract, BeatmapID: m.BeatmapID}, nil
	case "Reset":
		return engine.Command{Type: engine.CmdReset}, nil
	default:
		return engine.Command{}, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}
