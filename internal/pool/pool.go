// Package pool holds a round's beatmap pools and answers draft legality lookups.
package pool

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
)

var ErrInvalidRound = errors.New("invalid round")

// WinCondition selects which telemetry metric decides the leader on a beatmap.
type WinCondition int

const (
	WinScore WinCondition = iota
	WinAccuracy
	WinMissCount
)

func (w WinCondition) String() string {
	switch w {
	case WinAccuracy:
		return "accuracy"
	case WinMissCount:
		return "miss_count"
	default:
		return "score"
	}
}

func (w WinCondition) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *WinCondition) UnmarshalText(b []byte) error {
	switch string(b) {
	case "score", "score_v2", "":
		*w = WinScore
	case "accuracy":
		*w = WinAccuracy
	case "miss_count":
		*w = WinMissCount
	default:
		return fmt.Errorf("unknown win condition %q", b)
	}
	return nil
}

type Entry struct {
	BeatmapID    int          `json:"beatmap_id" validate:"gt=0"`
	Mods         string       `json:"mods"`
	WinCondition WinCondition `json:"win_condition"`
}

// Round is one stage of the bracket. Beatmaps2 is an optional second pool shown
// beside the first.
type Round struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	BestOf      int             `json:"best_of" validate:"min=3,max=23"`
	BansPerTeam int             `json:"bans_per_team" validate:"min=0,max=2"`
	BanOrder    engine.BanOrder `json:"ban_order"`
	Beatmaps    []Entry         `json:"beatmaps" validate:"dive"`
	Beatmaps2   []Entry         `json:"beatmaps2" validate:"dive"`
}

func NewRound(name string) *Round {
	return &Round{Name: name, BestOf: 9, BansPerTeam: 1}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r *Round) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRound, err)
	}
	if !r.BanOrder.Valid() {
		return fmt.Errorf("%w: ban order %q", ErrInvalidRound, r.BanOrder)
	}
	return nil
}

// Rules converts the round's ban settings into draft rules.
func (r *Round) Rules(rollWinner engine.Team) engine.Rules {
	return engine.Rules{BansPerTeam: r.BansPerTeam, BanOrder: r.BanOrder, RollWinner: rollWinner}
}
