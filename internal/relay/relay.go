// Package relay fans realtime session traffic out to connected clients.
// Each live session gets one Room goroutine; the Relay actor owns the
// sessionID -> Room map so lookup and teardown never race.
package relay

import (
	"context"

	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/events"
	"github.com/studyduo/pairquiz/internal/store"
)

type relayMsg interface{ isRelayMsg() }

type ensureRoom struct {
	SessionID string
	Reply     chan *Room
}

type removeRoom struct{ SessionID string }

type shutdownRelay struct{}

func (ensureRoom) isRelayMsg()    {}
func (removeRoom) isRelayMsg()    {}
func (shutdownRelay) isRelayMsg() {}

type Relay struct {
	inbox  chan relayMsg
	rooms  map[string]*Room
	store  store.Store
	pub    events.Publisher
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(parent context.Context, st store.Store, pub events.Publisher, log *zap.Logger) *Relay {
	ctx, cancel := context.WithCancel(parent)
	rly := &Relay{
		inbox:  make(chan relayMsg, 64),
		rooms:  make(map[string]*Room),
		store:  st,
		pub:    pub,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go rly.loop()
	return rly
}

func (rly *Relay) loop() {
	for {
		select {
		case <-rly.ctx.Done():
			rly.shutdown()
			return

		case m := <-rly.inbox:
			switch msg := m.(type) {
			case ensureRoom:
				room, ok := rly.rooms[msg.SessionID]
				if !ok {
					id := msg.SessionID
					room = NewRoom(rly.ctx, id, rly.store, rly.pub, rly.log, func() {
						rly.inbox <- removeRoom{SessionID: id}
					})
					rly.rooms[id] = room
					rly.log.Info("room opened", zap.String("session_id", id))
				}
				msg.Reply <- room

			case removeRoom:
				// Teardown is registry-driven: unmap first, then tell the
				// room to shut down. A member that slipped in since the
				// empty report is disconnected by the shutdown and lands
				// in a fresh room on its automatic rejoin.
				if room, ok := rly.rooms[msg.SessionID]; ok {
					delete(rly.rooms, msg.SessionID)
					select {
					case room.Inbox() <- Shutdown{}:
					default:
					}
					rly.log.Info("room closed", zap.String("session_id", msg.SessionID))
				}

			case shutdownRelay:
				rly.shutdown()
				return
			}
		}
	}
}

// Room returns the room for a session, creating it on first use.
func (rly *Relay) Room(sessionID string) *Room {
	reply := make(chan *Room, 1)
	select {
	case rly.inbox <- ensureRoom{SessionID: sessionID, Reply: reply}:
	case <-rly.ctx.Done():
		return nil
	}
	select {
	case room := <-reply:
		return room
	case <-rly.ctx.Done():
		return nil
	}
}

func (rly *Relay) Shutdown() {
	select {
	case rly.inbox <- shutdownRelay{}:
	case <-rly.ctx.Done():
	}
}

func (rly *Relay) shutdown() {
	for id, room := range rly.rooms {
		select {
		case room.Inbox() <- Shutdown{}:
		default:
		}
		delete(rly.rooms, id)
	}
	rly.cancel()
}
