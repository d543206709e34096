package pool

import "github.com/DoyleJ11/tourney-draft-backend/internal/engine"

// Index is a read-only lookup over a round's pools. Rebuild it when the round
// changes; call Sync after every draft mutation. A nil *Index means no round.
type Index struct {
	round   *Round
	entries map[int]Entry
	chosen  map[int]engine.Choice
}

func NewIndex(r *Round) *Index {
	ix := &Index{
		round:   r,
		entries: make(map[int]Entry, len(r.Beatmaps)+len(r.Beatmaps2)),
		chosen:  map[int]engine.Choice{},
	}
	// first pool wins on duplicate ids
	for _, pools := range [][]Entry{r.Beatmaps, r.Beatmaps2} {
		for _, e := range pools {
			if _, ok := ix.entries[e.BeatmapID]; !ok {
				ix.entries[e.BeatmapID] = e
			}
		}
	}
	return ix
}

func (ix *Index) Round() *Round {
	if ix == nil {
		return nil
	}
	return ix.round
}

func (ix *Index) Contains(beatmapID int) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.entries[beatmapID]
	return ok
}

func (ix *Index) Entry(beatmapID int) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	e, ok := ix.entries[beatmapID]
	return e, ok
}

func (ix *Index) IsChosen(beatmapID int) bool {
	_, ok := ix.Choice(beatmapID)
	return ok
}

func (ix *Index) Choice(beatmapID int) (engine.Choice, bool) {
	if ix == nil {
		return engine.Choice{}, false
	}
	c, ok := ix.chosen[beatmapID]
	return c, ok
}

func (ix *Index) Sync(choices []engine.Choice) {
	if ix == nil {
		return
	}
	clear(ix.chosen)
	for _, c := range choices {
		ix.chosen[c.BeatmapID] = c
	}
}

// Group is a run of consecutive entries sharing a mod tag.
type Group struct {
	Mods    string  `json:"mods"`
	Entries []Entry `json:"entries"`
}

// Groups returns both pools split into mod rows, in pool order.
func (ix *Index) Groups() (first, second []Group) {
	if ix == nil {
		return nil, nil
	}
	return groupByMods(ix.round.Beatmaps), groupByMods(ix.round.Beatmaps2)
}

func groupByMods(entries []Entry) []Group {
	var groups []Group
	for _, e := range entries {
		if n := len(groups); n == 0 || groups[n-1].Mods != e.Mods {
			groups = append(groups, Group{Mods: e.Mods})
		}
		g := &groups[len(groups)-1]
		g.Entries = append(g.Entries, e)
	}
	return groups
}
