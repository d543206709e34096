package lobby

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/pool"
	"github.com/DoyleJ11/tourney-draft-backend/internal/score"
	"github.com/DoyleJ11/tourney-draft-backend/internal/store"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
)

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			// channel closed → that's fine; no further snapshots possible
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
		// good: no snapshot
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func testRound() *pool.Round {
	r := pool.NewRound("Quarterfinals")
	r.Beatmaps = []pool.Entry{
		{BeatmapID: 101, Mods: "NM"},
		{BeatmapID: 102, Mods: "NM"},
		{BeatmapID: 103, Mods: "HD", WinCondition: pool.WinAccuracy},
		{BeatmapID: 104, Mods: "HR", WinCondition: pool.WinMissCount},
	}
	r.Beatmaps2 = []pool.Entry{{BeatmapID: 201, Mods: "TB"}}
	return r
}

func noAutoAdvance() Options {
	o := DefaultOptions()
	o.AutoAdvance = false
	return o
}

// startLobby starts a lobby with the test round and joins one client.
func startLobby(t *testing.T, opts Options) (*Lobby, chan Snapshot) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := Match{Code: "QF0001", RedName: "Red Team", BlueName: "Blue Team", Round: testRound()}
	l := NewLobby(ctx, m, engine.NewEmptyState(engine.DefaultRules()), opts)

	out := make(chan Snapshot, 16)
	l.Inbox() <- Join{ClientID: "c1", Outbox: out}
	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 0 {
		t.Fatalf("after join: want version=0, got %d", first.Version)
	}
	return l, out
}

func submit(l *Lobby, id int) chan error {
	reply := make(chan error, 1)
	l.Inbox() <- FromClient{ClientID: "c1", Cmd: engine.Command{Type: engine.CmdSubmitChoice, BeatmapID: id}, Reply: reply}
	return reply
}

func getView(t *testing.T, l *Lobby) View {
	t.Helper()
	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	return recvView(t, reply, 100*time.Millisecond)
}

func TestLobby_Submit_BroadcastsSnapshotAndVersionIncrements(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())

	if err := <-submit(l, 101); err != nil {
		t.Fatalf("submit: %v", err)
	}
	next := recvSnapshot(t, out, 100*time.Millisecond)
	if next.Version != 1 {
		t.Fatalf("after ban: want version=1, got %d", next.Version)
	}
	want := []engine.Choice{{Team: engine.TeamRed, Action: engine.ActionBan, BeatmapID: 101}}
	if !slices.Equal(next.State.Choices, want) {
		t.Fatalf("after ban: want %+v, got %+v", want, next.State.Choices)
	}
	if got := EventTypes(next.Events); !slices.Equal(got, []string{EvtChoiceAdded, EvtTurnChanged}) {
		t.Fatalf("unexpected events %v", got)
	}
	if next.State.Turn != (engine.TurnStep{Team: engine.TeamBlue, Action: engine.ActionBan}) {
		t.Fatalf("want blue ban, got %+v", next.State.Turn)
	}
}

func TestLobby_RejectedCommand_NoBroadcast(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())

	if err := <-submit(l, 999); !errors.Is(err, engine.ErrNotInPool) {
		t.Fatalf("want ErrNotInPool, got %v", err)
	}
	recvNoSnapshot(t, out, 100*time.Millisecond)

	<-submit(l, 101)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	if err := <-submit(l, 101); !errors.Is(err, engine.ErrAlreadyChosen) {
		t.Fatalf("want ErrAlreadyChosen, got %v", err)
	}
	recvNoSnapshot(t, out, 100*time.Millisecond)

	v := getView(t, l)
	if v.Version != 1 || len(v.State.Choices) != 1 {
		t.Fatalf("rejections changed state: version=%d choices=%+v", v.Version, v.State.Choices)
	}
}

func TestLobby_NoRound_RejectsChoices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLobby(ctx, Match{Code: "EMPTY1"}, engine.NewEmptyState(engine.DefaultRules()), noAutoAdvance())

	if err := <-submit(l, 101); !errors.Is(err, engine.ErrNoActiveRound) {
		t.Fatalf("want ErrNoActiveRound, got %v", err)
	}
}

func TestLobby_DropSlowClient(t *testing.T) {
	l, _ := startLobby(t, noAutoAdvance())

	slow := make(chan Snapshot, 1)
	l.Inbox() <- Join{ClientID: "slow", Outbox: slow}
	// join snapshot fills the buffer; the next broadcast cannot be delivered
	<-submit(l, 101)

	v := getView(t, l)
	if v.NumClients != 1 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", v.NumClients)
	}
}

func TestLobby_SnapshotIsCopy(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())
	<-submit(l, 101)
	snap := recvSnapshot(t, out, 100*time.Millisecond)

	snap.State.Choices[0].BeatmapID = 555

	v := getView(t, l)
	if v.State.Choices[0].BeatmapID != 101 {
		t.Fatalf("snapshot aliases lobby state: %+v", v.State.Choices)
	}
}

func TestLobby_PersistsChoiceLog(t *testing.T) {
	repo := store.NewMemory()
	opts := noAutoAdvance()
	opts.Repo = repo
	l, out := startLobby(t, opts)

	<-submit(l, 101)
	<-submit(l, 102)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	got, err := repo.Load(context.Background(), "QF0001")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[1].BeatmapID != 102 {
		t.Fatalf("unexpected persisted log %+v", got)
	}

	l.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdReset}}
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	got, _ = repo.Load(context.Background(), "QF0001")
	if len(got) != 0 {
		t.Fatalf("reset not persisted: %+v", got)
	}
}

func autoAdvanceAfter(d time.Duration) Options {
	o := DefaultOptions()
	o.AutoAdvanceDelay = d
	return o
}

// banBoth records both bans and drains their snapshots, leaving blue on pick.
func banBoth(t *testing.T, l *Lobby, out chan Snapshot) {
	t.Helper()
	<-submit(l, 101)
	<-submit(l, 102)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	ban2 := recvSnapshot(t, out, 100*time.Millisecond)
	if ban2.State.Turn != (engine.TurnStep{Team: engine.TeamBlue, Action: engine.ActionPick}) {
		t.Fatalf("after two bans want blue pick, got %+v", ban2.State.Turn)
	}
}

func TestLobby_AutoAdvance_FiresAfterPick(t *testing.T) {
	l, out := startLobby(t, autoAdvanceAfter(100*time.Millisecond))
	banBoth(t, l, out)

	recvNoSnapshot(t, out, 150*time.Millisecond) // bans never arm the timer

	<-submit(l, 103)
	pick := recvSnapshot(t, out, 100*time.Millisecond)
	if pick.GameplayReady {
		t.Fatalf("ready before delay")
	}
	if !getView(t, l).AutoAdvancePending {
		t.Fatalf("expected a pending auto-advance")
	}

	ready := recvSnapshot(t, out, 500*time.Millisecond)
	if !ready.GameplayReady || !slices.Equal(EventTypes(ready.Events), []string{EvtGameplayReady}) {
		t.Fatalf("want gameplay_ready snapshot, got %+v", ready)
	}
	recvNoSnapshot(t, out, 200*time.Millisecond)
}

func TestLobby_AutoAdvance_RetractCancels(t *testing.T) {
	l, out := startLobby(t, autoAdvanceAfter(100*time.Millisecond))
	banBoth(t, l, out)

	<-submit(l, 103)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	l.Inbox() <- FromClient{Cmd: engine.Command{Type: engine.CmdRetract, BeatmapID: 103}}
	retract := recvSnapshot(t, out, 100*time.Millisecond)
	if len(retract.State.Choices) != 2 {
		t.Fatalf("retract did not remove pick: %+v", retract.State.Choices)
	}

	recvNoSnapshot(t, out, 250*time.Millisecond)
	if getView(t, l).GameplayReady {
		t.Fatalf("cancelled transition still fired")
	}
}

func TestLobby_AutoAdvance_NewPickReplacesPending(t *testing.T) {
	l, out := startLobby(t, autoAdvanceAfter(150*time.Millisecond))
	banBoth(t, l, out)

	<-submit(l, 103)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	<-submit(l, 104)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	// The first timer would have fired ~50ms from here.
	recvNoSnapshot(t, out, 100*time.Millisecond)

	ready := recvSnapshot(t, out, 300*time.Millisecond)
	if !ready.GameplayReady {
		t.Fatalf("want gameplay ready, got %+v", ready)
	}
	recvNoSnapshot(t, out, 250*time.Millisecond) // fired exactly once
}

func TestLobby_AutoAdvance_Disabled(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())
	banBoth(t, l, out)
	<-submit(l, 103)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	if getView(t, l).AutoAdvancePending {
		t.Fatalf("auto-advance armed while disabled")
	}
}

func TestLobby_Shutdown_StopsTimer_NoFire(t *testing.T) {
	l, out := startLobby(t, autoAdvanceAfter(100*time.Millisecond))
	banBoth(t, l, out)
	<-submit(l, 103)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	l.Inbox() <- Shutdown{}

	// Now assert no *new* snapshot shows up (or channel is closed)
	recvNoSnapshot(t, out, 250*time.Millisecond)
}

func TestLobby_Telemetry_RecomputesMetrics(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())

	tie := telemetry.Snapshot{Score1: 10, Score2: 10, Accuracy1: 97, Accuracy2: 96}
	l.Inbox() <- TelemetryUpdate{Snapshot: tie}
	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if got := EventTypes(snap.Events); !slices.Equal(got, []string{EvtTelemetryUpdated, EvtScoreMetricsUpdated}) {
		t.Fatalf("unexpected events %v", got)
	}
	if snap.Metrics.WinningSide != score.Side2 || !snap.Metrics.Side1Winning || !snap.Metrics.Side2Winning {
		t.Fatalf("score tie should mark both and resolve to side2: %+v", snap.Metrics)
	}
	if snap.Telemetry != tie {
		t.Fatalf("telemetry not stored: %+v", snap.Telemetry)
	}

	l.Inbox() <- TelemetryUpdate{Snapshot: tie}
	snap = recvSnapshot(t, out, 100*time.Millisecond)
	if got := EventTypes(snap.Events); !slices.Equal(got, []string{EvtTelemetryUpdated}) {
		t.Fatalf("unchanged metrics should not be re-emitted: %v", got)
	}
}

func TestLobby_ActiveBeatmap_SwapBeforeMetricsThenImplicitPick(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())
	banBoth(t, l, out)

	l.Inbox() <- TelemetryUpdate{Snapshot: telemetry.Snapshot{Accuracy1: 60, Accuracy2: 40, Score1: 1, Score2: 2}}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	l.Inbox() <- ActiveBeatmap{BeatmapID: 103}
	snap := recvSnapshot(t, out, 100*time.Millisecond)

	want := []string{EvtActiveBeatmapChanged, EvtWinConditionSwapped, EvtScoreMetricsUpdated, EvtChoiceAdded, EvtTurnChanged}
	if got := EventTypes(snap.Events); !slices.Equal(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	swap := snap.Events[1].Swap
	if swap == nil || swap.From != pool.WinScore || swap.To != pool.WinAccuracy {
		t.Fatalf("unexpected swap %+v", swap)
	}
	if snap.Metrics.Condition != pool.WinAccuracy || snap.Metrics.WinningSide != score.Side1 {
		t.Fatalf("metrics not recomputed for accuracy: %+v", snap.Metrics)
	}
	last := snap.State.Choices[len(snap.State.Choices)-1]
	if last != (engine.Choice{Team: engine.TeamBlue, Action: engine.ActionPick, BeatmapID: 103}) {
		t.Fatalf("want blue pick of 103, got %+v", last)
	}

	v := getView(t, l)
	if v.Bans != 2 || v.Picks != 1 {
		t.Fatalf("want 2 bans and 1 pick, got %d and %d", v.Bans, v.Picks)
	}
}

func TestLobby_ActiveBeatmap_BanPhaseIsNotAPick(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())
	<-submit(l, 101)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	l.Inbox() <- ActiveBeatmap{BeatmapID: 201}
	snap := recvSnapshot(t, out, 100*time.Millisecond)

	if got := EventTypes(snap.Events); !slices.Equal(got, []string{EvtActiveBeatmapChanged}) {
		t.Fatalf("unexpected events %v", got)
	}
	if len(snap.State.Choices) != 1 {
		t.Fatalf("active beatmap recorded a choice during bans: %+v", snap.State.Choices)
	}
}

func TestLobby_SyncCondition_NeverPicks(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())
	banBoth(t, l, out)

	l.Inbox() <- SyncCondition{BeatmapID: 103}
	snap := recvSnapshot(t, out, 100*time.Millisecond)
	if got := EventTypes(snap.Events); len(got) == 0 || got[0] != EvtWinConditionSwapped {
		t.Fatalf("want condition swap first, got %v", got)
	}
	if snap.Metrics.Condition != pool.WinAccuracy {
		t.Fatalf("want accuracy condition, got %q", snap.Metrics.Condition)
	}
	if len(snap.State.Choices) != 2 {
		t.Fatalf("condition sync recorded a choice: %+v", snap.State.Choices)
	}

	// Same condition again, or a beatmap outside the round: nothing to broadcast.
	l.Inbox() <- SyncCondition{BeatmapID: 103}
	l.Inbox() <- SyncCondition{BeatmapID: 999}
	recvNoSnapshot(t, out, 100*time.Millisecond)
}

func TestLobby_SetRound_RederivesTurn(t *testing.T) {
	l, out := startLobby(t, noAutoAdvance())
	<-submit(l, 101)
	<-submit(l, 102)
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	r := testRound()
	r.BansPerTeam = 2
	l.Inbox() <- SetRound{Round: r}
	snap := recvSnapshot(t, out, 100*time.Millisecond)

	if snap.State.Rules.BansPerTeam != 2 {
		t.Fatalf("rules not taken from new round: %+v", snap.State.Rules)
	}
	if snap.State.Turn != (engine.TurnStep{Team: engine.TeamRed, Action: engine.ActionBan}) {
		t.Fatalf("two of four bans recorded, want red ban, got %+v", snap.State.Turn)
	}

	l.Inbox() <- SetRound{Round: nil}
	_ = recvSnapshot(t, out, 100*time.Millisecond)
	if err := <-submit(l, 103); !errors.Is(err, engine.ErrNoActiveRound) {
		t.Fatalf("want ErrNoActiveRound after clearing round, got %v", err)
	}
}
