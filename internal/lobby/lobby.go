package lobby

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/metrics"
	"github.com/DoyleJ11/tourney-draft-backend/internal/pool"
	"github.com/DoyleJ11/tourney-draft-backend/internal/score"
	"github.com/DoyleJ11/tourney-draft-backend/internal/store"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
)

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	ClientID string
	Cmd      engine.Command
	// Reply, if set, must be buffered; it gets the engine's verdict.
	Reply chan error
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// SetRound swaps the active round. Recorded choices are kept and the turn is
// re-derived under the new round's rules.
type SetRound struct {
	Round *pool.Round
}

func (SetRound) isLobbyMsg() {}

type TelemetryUpdate struct {
	Snapshot telemetry.Snapshot
}

func (TelemetryUpdate) isLobbyMsg() {}

type ActiveBeatmap struct {
	BeatmapID int
}

func (ActiveBeatmap) isLobbyMsg() {}

// SyncCondition takes the win condition of a beatmap already on screen. Unlike
// ActiveBeatmap it never records a pick.
type SyncCondition struct {
	BeatmapID int
}

func (SyncCondition) isLobbyMsg() {}

type autoAdvanceFired struct{ gen uint64 }

func (autoAdvanceFired) isLobbyMsg() {}

type Match struct {
	Code     string      `json:"code"`
	RedName  string      `json:"red_name"`
	BlueName string      `json:"blue_name"`
	Round    *pool.Round `json:"round,omitempty"`
}

// Export fields
type Snapshot struct {
	Version       int                `json:"version"`
	Match         Match              `json:"match"`
	State         engine.State       `json:"state"`
	Events        []Event            `json:"events,omitempty"`
	Telemetry     telemetry.Snapshot `json:"telemetry"`
	Metrics       score.Metrics      `json:"metrics"`
	GameplayReady bool               `json:"gameplay_ready"`
}

type View struct {
	Version            int                `json:"version"`
	NumClients         int                `json:"num_clients"`
	Match              Match              `json:"match"`
	State              engine.State       `json:"state"`
	Bans               int                `json:"bans"`
	Picks              int                `json:"picks"`
	Telemetry          telemetry.Snapshot `json:"telemetry"`
	Metrics            score.Metrics      `json:"metrics"`
	GameplayReady      bool               `json:"gameplay_ready"`
	AutoAdvancePending bool               `json:"auto_advance_pending"`
}

type Options struct {
	AutoAdvance      bool
	AutoAdvanceDelay time.Duration
	Repo             store.Repository
	StoreTimeout     time.Duration
	Log              *zap.Logger
}

func DefaultOptions() Options {
	return Options{AutoAdvance: true, AutoAdvanceDelay: 10 * time.Second, StoreTimeout: 2 * time.Second}
}

type Lobby struct {
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc

	match     Match
	index     *pool.Index
	scores    *score.Aggregator
	telemetry telemetry.Snapshot
	ready     bool

	timer    *time.Timer
	timerGen uint64

	opts Options
	log  *zap.Logger
}

func NewLobby(parent context.Context, m Match, initial engine.State, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.AutoAdvanceDelay <= 0 {
		opts.AutoAdvanceDelay = DefaultOptions().AutoAdvanceDelay
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultOptions().StoreTimeout
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		state:   initial,
		version: 0,
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
		match:   m,
		scores:  score.NewAggregator(),
		opts:    opts,
		log:     opts.Log.Named("lobby").With(zap.String("match", m.Code)),
	}
	if m.Round != nil {
		l.index = pool.NewIndex(m.Round)
		l.index.Sync(initial.Choices)
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- l.snapshot(nil)

			case Leave:
				delete(l.clients, msg.ClientID)

			case FromClient:
				events, err := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- err
				}
				if err == nil {
					l.commit(events)
				}

			case SetRound:
				l.setRound(msg.Round)
				l.commit([]Event{{Type: EvtRoundChanged}})

			case TelemetryUpdate:
				l.telemetry = msg.Snapshot
				events := []Event{{Type: EvtTelemetryUpdated}}
				if _, changed := l.scores.Update(msg.Snapshot.Values()); changed {
					events = append(events, Event{Type: EvtScoreMetricsUpdated})
				}
				l.commit(events)

			case ActiveBeatmap:
				l.commit(l.activeBeatmap(msg.BeatmapID))

			case SyncCondition:
				if events := l.deriveCondition(msg.BeatmapID); len(events) > 0 {
					l.commit(events)
				}

			case autoAdvanceFired:
				if msg.gen != l.timerGen || l.timer == nil {
					break // stale
				}
				l.timer = nil
				l.ready = true
				l.log.Info("gameplay ready")
				l.commit([]Event{{Type: EvtGameplayReady}})

			case GetState:
				msg.Reply <- l.view()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(cmd engine.Command) ([]Event, error) {
	var p engine.Pool
	if l.index != nil {
		p = l.index
	}

	evs, next, err := engine.Apply(l.state, p, cmd)
	if err != nil {
		metrics.DraftCommands.WithLabelValues(string(cmd.Type), metrics.CommandRejected).Inc()
		l.log.Debug("command rejected",
			zap.String("command", string(cmd.Type)),
			zap.Int("beatmap_id", cmd.BeatmapID),
			zap.Error(err))
		return nil, err
	}
	metrics.DraftCommands.WithLabelValues(string(cmd.Type), metrics.CommandApplied).Inc()

	mutated := cmd.Type != engine.CmdSelectMode
	if mutated {
		l.cancelAutoAdvance()
		l.ready = false
	}

	l.state = next
	l.index.Sync(next.Choices)
	if mutated {
		l.persist()
	}
	if engine.PickAdded(evs) {
		l.armAutoAdvance()
	}
	return fromEngine(evs), nil
}

// activeBeatmap handles the beatmap osu! is showing. The condition swap is
// emitted before the metrics it causes; during the pick phase the change
// also counts as a pick for the side on turn.
func (l *Lobby) activeBeatmap(id int) []Event {
	events := []Event{{Type: EvtActiveBeatmapChanged, BeatmapID: id}}
	events = append(events, l.deriveCondition(id)...)

	picked, err := l.apply(engine.Command{Type: engine.CmdActiveBeatmap, BeatmapID: id})
	if err == nil {
		l.log.Info("implicit pick from active beatmap", zap.Int("beatmap_id", id))
		events = append(events, picked...)
	}
	return events
}

// deriveCondition switches the aggregator to the pool entry's win condition.
// Beatmaps outside the round leave it unchanged.
func (l *Lobby) deriveCondition(id int) []Event {
	entry, ok := l.index.Entry(id)
	if !ok {
		return nil
	}
	swap, swapped := l.scores.SetCondition(entry.WinCondition)
	if !swapped {
		return nil
	}
	events := []Event{{Type: EvtWinConditionSwapped, BeatmapID: id, Swap: &swap}}
	if _, changed := l.scores.Recompute(); changed {
		events = append(events, Event{Type: EvtScoreMetricsUpdated})
	}
	return events
}

func (l *Lobby) setRound(r *pool.Round) {
	l.match.Round = r
	l.index = nil
	rules := l.state.Rules
	if r != nil {
		l.index = pool.NewIndex(r)
		rules = r.Rules(rules.RollWinner)
	}
	l.state = engine.Restore(l.state.Choices, rules)
	l.index.Sync(l.state.Choices)
}

func (l *Lobby) persist() {
	if l.opts.Repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(l.ctx, l.opts.StoreTimeout)
	defer cancel()
	if err := l.opts.Repo.Save(ctx, l.match.Code, l.state.Choices); err != nil {
		l.log.Error("persist choices", zap.Error(err))
	}
}

func (l *Lobby) armAutoAdvance() {
	if !l.opts.AutoAdvance {
		return
	}
	l.timerGen++
	gen := l.timerGen
	l.timer = time.AfterFunc(l.opts.AutoAdvanceDelay, func() {
		select {
		case l.inbox <- autoAdvanceFired{gen: gen}:
		case <-l.ctx.Done():
		}
	})
}

func (l *Lobby) cancelAutoAdvance() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.timerGen++
}

func (l *Lobby) commit(events []Event) {
	l.version++
	l.broadcast(l.snapshot(events))
}

// snapshot copies everything a reader may hold on to.
func (l *Lobby) snapshot(events []Event) Snapshot {
	st := l.state
	st.Choices = slices.Clone(l.state.Choices)
	return Snapshot{
		Version:       l.version,
		Match:         l.match,
		State:         st,
		Events:        events,
		Telemetry:     l.telemetry,
		Metrics:       l.scores.Metrics(),
		GameplayReady: l.ready,
	}
}

func (l *Lobby) view() View {
	s := l.snapshot(nil)
	return View{
		Version:            s.Version,
		NumClients:         len(l.clients),
		Match:              s.Match,
		State:              s.State,
		Bans:               s.State.Bans(),
		Picks:              s.State.Picks(),
		Telemetry:          s.Telemetry,
		Metrics:            s.Metrics,
		GameplayReady:      s.GameplayReady,
		AutoAdvancePending: l.timer != nil,
	}
}

func (l *Lobby) shutdown() {
	l.cancelAutoAdvance()
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			l.log.Debug("dropping slow client", zap.String("client_id", id))
			close(ch)
			delete(l.clients, id)
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) Code() string { return l.match.Code }
