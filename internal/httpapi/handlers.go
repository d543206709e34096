package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/engine"
	"github.com/DoyleJ11/tourney-draft-backend/internal/hub"
	"github.com/DoyleJ11/tourney-draft-backend/internal/lobby"
	"github.com/DoyleJ11/tourney-draft-backend/internal/pool"
	"github.com/DoyleJ11/tourney-draft-backend/internal/telemetry"
	"github.com/DoyleJ11/tourney-draft-backend/internal/types"
)

const maxBodyBytes = 1 << 20

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

type createMatchRequest struct {
	RedName  string          `json:"red_name"`
	BlueName string          `json:"blue_name"`
	Round    json.RawMessage `json:"round,omitempty"`
}

// decodeRound keeps NewRound's defaults for fields the body leaves out.
func decodeRound(raw json.RawMessage) (*pool.Round, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	r := pool.NewRound("")
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func CreateMatch(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMatchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		round, err := decodeRound(req.Round)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		for {
			code, err := GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
			reply := make(chan *lobby.Lobby, 1)
			h.Inbox() <- hub.CreateLobby{
				Match: lobby.Match{Code: code, RedName: req.RedName, BlueName: req.BlueName, Round: round},
				Reply: reply,
			}
			if <-reply == nil {
				log.Debug("collision on code, regenerating", zap.String("code", code))
				continue
			}
			writeJSON(w, http.StatusCreated, struct {
				Code string `json:"code"`
			}{Code: code})
			return
		}
	}
}

// lobbyFor resolves {code}, writing a 404 when it is unknown.
func lobbyFor(h *hub.Hub, w http.ResponseWriter, r *http.Request) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.GetLobby{Code: chi.URLParam(r, "code"), Reply: reply}
	lb := <-reply
	if lb == nil {
		writeError(w, http.StatusNotFound, "match not found")
	}
	return lb
}

func viewOf(lb *lobby.Lobby) lobby.View {
	reply := make(chan lobby.View, 1)
	lb.Inbox() <- lobby.GetState{Reply: reply}
	return <-reply
}

func GetMatch(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lobbyFor(h, w, r)
		if lb == nil {
			return
		}
		writeJSON(w, http.StatusOK, viewOf(lb))
	}
}

type poolResponse struct {
	Round     string       `json:"round"`
	Beatmaps  []poolMapRow `json:"beatmaps"`
	Beatmaps2 []poolMapRow `json:"beatmaps2,omitempty"`
}

type poolMapRow struct {
	Mods    string     `json:"mods"`
	Entries []poolSlot `json:"entries"`
}

type poolSlot struct {
	pool.Entry
	Choice *engine.Choice `json:"choice,omitempty"`
}

// GetPool lists the round's pools as mod rows, each map marked with its choice.
func GetPool(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lobbyFor(h, w, r)
		if lb == nil {
			return
		}
		v := viewOf(lb)
		if v.Match.Round == nil {
			writeError(w, http.StatusNotFound, "match has no round")
			return
		}

		ix := pool.NewIndex(v.Match.Round)
		ix.Sync(v.State.Choices)
		first, second := ix.Groups()
		writeJSON(w, http.StatusOK, poolResponse{
			Round:     v.Match.Round.Name,
			Beatmaps:  poolRows(ix, first),
			Beatmaps2: poolRows(ix, second),
		})
	}
}

func poolRows(ix *pool.Index, groups []pool.Group) []poolMapRow {
	rows := make([]poolMapRow, 0, len(groups))
	for _, g := range groups {
		row := poolMapRow{Mods: g.Mods}
		for _, e := range g.Entries {
			slot := poolSlot{Entry: e}
			if c, ok := ix.Choice(e.BeatmapID); ok {
				slot.Choice = &c
			}
			row.Entries = append(row.Entries, slot)
		}
		rows = append(rows, row)
	}
	return rows
}

func SetRound(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lobbyFor(h, w, r)
		if lb == nil {
			return
		}
		var raw json.RawMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		round, err := decodeRound(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		lb.Inbox() <- lobby.SetRound{Round: round}
		writeJSON(w, http.StatusOK, viewOf(lb))
	}
}

func PostCommand(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb := lobbyFor(h, w, r)
		if lb == nil {
			return
		}
		var cm types.ClientMessage
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cm); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		cmd, err := cm.Command()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		reply := make(chan error, 1)
		lb.Inbox() <- lobby.FromClient{Cmd: cmd, Reply: reply}
		if err := <-reply; err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, viewOf(lb))
	}
}

func SetCurrent(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)
		h.Inbox() <- hub.SetCurrent{Code: chi.URLParam(r, "code"), Reply: errc}
		if err := <-errc; err != nil {
			if errors.Is(err, hub.ErrUnknownMatch) {
				writeError(w, http.StatusNotFound, "match not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetShowcaseSlot(cache *telemetry.ShowcaseCache, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(r, "beatmapID"))
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "bad beatmap id")
			return
		}
		if cache == nil {
			writeError(w, http.StatusServiceUnavailable, "telemetry disabled")
			return
		}
		m, ok, err := cache.Slot(r.Context(), id)
		if err != nil {
			log.Warn("showcase lookup failed", zap.Int("beatmap_id", id), zap.Error(err))
			writeError(w, http.StatusBadGateway, "showcase unavailable")
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "beatmap not in showcase")
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ServerMessage{Type: "Error", Error: msg})
}
