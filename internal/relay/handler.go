package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/pkg/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades /ws connections. A connection is anonymous until the
// client sends join_session; after that every frame is forwarded to the
// session's room under the bound user id. A repeated join_session for
// the same binding refreshes membership (clients re-announce after
// every reconnect) and replays the session snapshot.
func Handler(rly *Relay, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		connCtx, connCancel := context.WithCancel(r.Context())
		defer connCancel()

		if err := writeMessage(connCtx, conn, mustMessage(types.EventConnected, types.ConnectedPayload{
			SID: connID,
		})); err != nil {
			return
		}

		out := make(chan types.Message, 16)
		var room *Room
		var userID string

		// Writer goroutine. The room closes out when the member is
		// dropped or the room shuts down; cancelling connCtx then ends
		// the reader too, so the whole connection tears down together.
		go func() {
			defer connCancel()
			for msg := range out {
				if writeMessage(connCtx, conn, msg) != nil {
					return
				}
			}
		}()

		defer func() {
			if room != nil {
				room.Inbox() <- Leave{UserID: userID, ConnID: connID}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(connCtx)
			if err != nil {
				return
			}

			var msg types.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = writeMessage(connCtx, conn, errorMessage("bad json"))
				continue
			}

			if msg.Event == types.EventJoinSession {
				var p types.JoinSessionPayload
				if err := json.Unmarshal(msg.Data, &p); err != nil || p.SessionID == "" || p.UserID == "" {
					_ = writeMessage(connCtx, conn, errorMessage("sessionId and userId are required"))
					continue
				}
				if room != nil && (userID != p.UserID || room.sessionID != p.SessionID) {
					_ = writeMessage(connCtx, conn, errorMessage("connection is already bound to a session"))
					continue
				}
				room = rly.Room(p.SessionID)
				if room == nil {
					return
				}
				userID = p.UserID
				room.Inbox() <- Join{UserID: userID, ConnID: connID, Outbox: out}
				log.Debug("socket bound",
					zap.String("session_id", p.SessionID),
					zap.String("user_id", userID))
				continue
			}

			if room == nil {
				_ = writeMessage(connCtx, conn, errorMessage("join_session required first"))
				continue
			}
			room.Inbox() <- FromClient{UserID: userID, Msg: msg}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg types.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
