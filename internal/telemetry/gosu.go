// Package telemetry polls a local gosumemory instance and turns its /json
// payload into the values the score display and draft need.
package telemetry

import (
	"errors"

	"github.com/DoyleJ11/tourney-draft-backend/internal/score"
)

var (
	ErrUpstream  = errors.New("telemetry service reported an error")
	ErrMalformed = errors.New("telemetry payload missing tourney data")
)

// Status is the subset of the gosumemory /json payload we read. Nested parts
// are pointers so a missing object can be told apart from zeros.
type Status struct {
	Error   *string  `json:"error"`
	Menu    *Menu    `json:"menu"`
	Tourney *Tourney `json:"tourney"`
}

type Menu struct {
	Beatmap *MenuBeatmap `json:"bm"`
}

type MenuBeatmap struct {
	ID  int    `json:"id"`
	MD5 string `json:"md5"`
	Set int    `json:"set"`
}

type Tourney struct {
	IPCClients []IPCClient `json:"ipcClients"`
}

type IPCClient struct {
	Team       string      `json:"team"`
	Gameplay   *Gameplay   `json:"gameplay"`
	Spectating *Spectating `json:"spectating"`
}

type Gameplay struct {
	Score    int64   `json:"score"`
	Accuracy float64 `json:"accuracy"`
	Mods     *Mods   `json:"mods"`
	Hits     *Hits   `json:"hits"`
}

type Mods struct {
	Num int    `json:"num"`
	Str string `json:"str"`
}

type Hits struct {
	Misses       int `json:"0"`
	SliderBreaks int `json:"sliderBreaks"`
}

type Spectating struct {
	Name    string `json:"name"`
	Country string `json:"country"`
	UserID  string `json:"userID"`
}

// Snapshot is one normalized poll result. Side 1 is the first tourney client,
// side 2 the second.
type Snapshot struct {
	Accuracy1       float64 `json:"accuracy1"`
	Accuracy2       float64 `json:"accuracy2"`
	Score1          int64   `json:"score1"`
	Score2          int64   `json:"score2"`
	Misses1         int     `json:"misses1"`
	Misses2         int     `json:"misses2"`
	ActiveBeatmapID int     `json:"active_beatmap_id"`
}

func (s Snapshot) Values() score.Values {
	return score.Values{
		Score1:    s.Score1,
		Score2:    s.Score2,
		Accuracy1: s.Accuracy1,
		Accuracy2: s.Accuracy2,
		Misses1:   s.Misses1,
		Misses2:   s.Misses2,
	}
}

// zeroed clears the live gameplay values and keeps the active beatmap.
func (s Snapshot) zeroed() Snapshot {
	return Snapshot{ActiveBeatmapID: s.ActiveBeatmapID}
}

// Normalize maps a decoded payload onto a Snapshot. prev supplies the active
// beatmap when the payload has none.
func Normalize(st *Status, prev Snapshot) (Snapshot, error) {
	if st == nil {
		return prev, ErrMalformed
	}
	if st.Error != nil {
		return prev.zeroed(), ErrUpstream
	}
	if st.Tourney == nil || st.Tourney.IPCClients == nil {
		return prev, ErrMalformed
	}

	snap := Snapshot{ActiveBeatmapID: prev.ActiveBeatmapID}
	if st.Menu != nil && st.Menu.Beatmap != nil {
		snap.ActiveBeatmapID = st.Menu.Beatmap.ID
	}

	// Only the first two clients are players; the rest are ignored.
	for i, c := range st.Tourney.IPCClients {
		if i == 2 {
			break
		}
		acc, sc, misses := clientValues(c)
		if i == 0 {
			snap.Accuracy1, snap.Score1, snap.Misses1 = acc, sc, misses
		} else {
			snap.Accuracy2, snap.Score2, snap.Misses2 = acc, sc, misses
		}
	}
	return snap, nil
}

func clientValues(c IPCClient) (acc float64, sc int64, misses int) {
	if c.Gameplay == nil {
		return 0, 0, 0
	}
	if c.Gameplay.Hits != nil {
		misses = c.Gameplay.Hits.Misses
	}
	return c.Gameplay.Accuracy, c.Gameplay.Score, misses
}
