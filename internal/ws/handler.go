package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney-draft-backend/internal/hub"
	"github.com/DoyleJ11/tourney-draft-backend/internal/lobby"
	"github.com/DoyleJ11/tourney-draft-backend/internal/metrics"
	"github.com/DoyleJ11/tourney-draft-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler streams a match's snapshots over a websocket and accepts draft
// commands. Without ?code= it follows the current match.
func Handler(h *hub.Hub, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		lb := findLobby(h, r.URL.Query().Get("code"))
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			log.Debug("accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("client_id", clientID), zap.String("match", lb.Code()))

		metrics.ConnectedClients.Inc()
		defer metrics.ConnectedClients.Dec()

		out := make(chan lobby.Snapshot, 8)
		lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}
		defer func() { lb.Inbox() <- lobby.Leave{ClientID: clientID} }()
		clog.Debug("client joined")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				if err := write(writeCtx, conn, types.SnapshotMessage(snap)); err != nil {
					clog.Debug("write failed", zap.Error(err))
					break
				}
			}
			// Closed outbox means the lobby dropped us or shut down.
			_ = conn.Close(websocket.StatusGoingAway, "lobby closed")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(r.Context(), conn, types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}

			cmd, err := cm.Command()
			if err != nil {
				_ = write(r.Context(), conn, types.ErrorMessage(err))
				continue
			}

			lb.Inbox() <- lobby.FromClient{ClientID: clientID, Cmd: cmd}
		}
	}
}

func findLobby(h *hub.Hub, code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	if code == "" {
		h.Inbox() <- hub.GetCurrent{Reply: reply}
	} else {
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
	}
	return <-reply
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
