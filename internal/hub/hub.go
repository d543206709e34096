package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/lobby"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
)

var ErrUnknownMatch = errors.New("unknown match")

type HubMsg interface{ isHubMsg() }

// CreateLobby replies nil when the code is already taken.
type CreateLobby struct {
	Match lobby.Match
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureLobby struct {
	Match lobby.Match // only used if creation happens
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

// SetCurrent selects the match that receives telemetry.
type SetCurrent struct {
	Code  string
	Reply chan error
}

type GetCurrent struct {
	Reply chan *lobby.Lobby
}

type ShutdownHub struct{}

type telemetryUpdated struct{ snap telemetry.Snapshot }

type activeBeatmapChanged struct{ id int }

func (CreateLobby) isHubMsg()          {}
func (GetLobby) isHubMsg()             {}
func (EnsureLobby) isHubMsg()          {}
func (RemoveLobby) isHubMsg()          {}
func (SetCurrent) isHubMsg()           {}
func (GetCurrent) isHubMsg()           {}
func (ShutdownHub) isHubMsg()          {}
func (telemetryUpdated) isHubMsg()     {}
func (activeBeatmapChanged) isHubMsg() {}

type Options struct {
	// Rules for matches created without a round.
	Rules engine.Rules
	Lobby lobby.Options
	Log   *zap.Logger
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	ctx     context.Context
	cancel  context.CancelFunc

	current   *lobby.Lobby
	telemetry telemetry.Snapshot
	opts      Options
	log       *zap.Logger
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Lobby.Log == nil {
		opts.Lobby.Log = opts.Log
	}
	if opts.Lobby.StoreTimeout <= 0 {
		opts.Lobby.StoreTimeout = lobby.DefaultOptions().StoreTimeout
	}
	if !opts.Rules.RollWinner.Valid() {
		opts.Rules = engine.DefaultRules()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		ctx:     ctx,
		cancel:  cancel,
		opts:    opts,
		log:     opts.Log.Named("hub"),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// TelemetryUpdated and ActiveBeatmapChanged make the hub a telemetry.Sink
// that forwards to the current match.
func (h *Hub) TelemetryUpdated(s telemetry.Snapshot) {
	h.send(telemetryUpdated{snap: s})
}

func (h *Hub) ActiveBeatmapChanged(id int) {
	h.send(activeBeatmapChanged{id: id})
}

func (h *Hub) send(m HubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if h.lobbies[msg.Match.Code] != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.create(msg.Match)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case EnsureLobby:
				if lb := h.lobbies[msg.Match.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.create(msg.Match)

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Inbox() <- lobby.Shutdown{}
					if h.current == lb {
						h.current = nil
					}
				}
				delete(h.lobbies, msg.Code)

			case SetCurrent:
				lb := h.lobbies[msg.Code]
				if lb == nil {
					msg.Reply <- ErrUnknownMatch
					break
				}
				h.current = lb
				h.log.Info("current match", zap.String("match", msg.Code))
				lb.Inbox() <- lobby.TelemetryUpdate{Snapshot: h.telemetry}
				if id := h.telemetry.ActiveBeatmapID; id > 0 {
					lb.Inbox() <- lobby.SyncCondition{BeatmapID: id}
				}
				msg.Reply <- nil

			case GetCurrent:
				msg.Reply <- h.current // May be nil

			case telemetryUpdated:
				h.telemetry = msg.snap
				if h.current != nil {
					h.current.Inbox() <- lobby.TelemetryUpdate{Snapshot: msg.snap}
				}

			case activeBeatmapChanged:
				if h.current != nil {
					h.current.Inbox() <- lobby.ActiveBeatmap{BeatmapID: msg.id}
				}

			case ShutdownHub:
				for _, lb := range h.lobbies {
					lb.Inbox() <- lobby.Shutdown{}
				}
				clear(h.lobbies)
				h.current = nil
				h.cancel()
			}
		}
	}
}

// create restores the match's choice log, if any, and starts its lobby.
func (h *Hub) create(m lobby.Match) *lobby.Lobby {
	rules := h.opts.Rules
	if m.Round != nil {
		rules = m.Round.Rules(h.opts.Rules.RollWinner)
	}

	var choices []engine.Choice
	if repo := h.opts.Lobby.Repo; repo != nil {
		ctx, cancel := context.WithTimeout(h.ctx, h.opts.Lobby.StoreTimeout)
		loaded, err := repo.Load(ctx, m.Code)
		cancel()
		if err != nil {
			h.log.Error("restore choices", zap.String("match", m.Code), zap.Error(err))
		}
		choices = loaded
	}

	lb := lobby.NewLobby(h.ctx, m, engine.Restore(choices, rules), h.opts.Lobby)
	h.lobbies[m.Code] = lb
	h.log.Info("lobby created", zap.String("match", m.Code), zap.Int("restored_choices", len(choices)))
	return lb
}
