package relay

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/events"
	"github.com/studyduo/pairquiz/internal/reducer"
	"github.com/studyduo/pairquiz/internal/session"
	"github.com/studyduo/pairquiz/internal/store"
	"github.com/studyduo/pairquiz/pkg/types"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	UserID string
	ConnID string             // identity of the underlying connection
	Outbox chan types.Message // where this member receives events
}

// Leave only takes effect if ConnID still matches the member's current
// connection; the stale Leave of a replaced socket is ignored.
type Leave struct {
	UserID string
	ConnID string
}

type FromClient struct {
	UserID string
	Msg    types.Message
}

type Shutdown struct{}

type GetView struct {
	Reply chan View
}

// View reflects room internals without data races; test hook.
type View struct {
	NumMembers int
}

func (Join) isRoomMsg()       {}
func (Leave) isRoomMsg()      {}
func (FromClient) isRoomMsg() {}
func (Shutdown) isRoomMsg()   {}
func (GetView) isRoomMsg()    {}

// member is one connected participant: the outbox plus the identity of
// the connection behind it, so a reconnect can displace its predecessor.
type member struct {
	connID string
	out    chan types.Message
}

// Room is the per-session fan-out point. A single goroutine owns the
// member set and applies every inbound event to the stored session
// through the same reducer the clients run, so the server's copy
// converges by the same rules. Rooms never tear themselves down: when
// the last member leaves they report empty and keep serving until the
// registry sends Shutdown, so a join can never race a self-destruct.
type Room struct {
	sessionID string
	inbox     chan Msg
	members   map[string]member
	store     store.Store
	pub       events.Publisher
	log       *zap.Logger
	onEmpty   func()
	parent    context.Context
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewRoom(parent context.Context, sessionID string, st store.Store, pub events.Publisher, log *zap.Logger, onEmpty func()) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		sessionID: sessionID,
		inbox:     make(chan Msg, 64),
		members:   make(map[string]member),
		store:     st,
		pub:       pub,
		log:       log,
		onEmpty:   onEmpty,
		parent:    parent,
		ctx:       ctx,
		cancel:    cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)

			case Leave:
				r.handleLeave(msg)

			case FromClient:
				r.handleClientEvent(msg)

			case GetView:
				msg.Reply <- View{NumMembers: len(r.members)}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(msg Join) {
	s, err := r.store.Get(r.ctx, r.sessionID)
	if err != nil {
		reject(msg.Outbox, "Session not found")
		return
	}
	if !s.IsParticipant(msg.UserID) {
		reject(msg.Outbox, "Not a participant of this session")
		return
	}

	// A rejoin from a fresh connection displaces the old one; its Leave,
	// when it eventually arrives, no longer matches and is ignored.
	if old, ok := r.members[msg.UserID]; ok && old.connID != msg.ConnID {
		close(old.out)
	}
	r.members[msg.UserID] = member{connID: msg.ConnID, out: msg.Outbox}

	role := "partner"
	if s.IsHost(msg.UserID) {
		role = "host"
	}
	r.send(msg.UserID, mustMessage(types.EventSessionJoined, types.SessionJoinedPayload{
		SessionID: r.sessionID,
		Role:      role,
		Session:   s,
	}))

	// Once the partner slot is bound the activation snapshot goes to
	// everyone, both as the human-facing event and as a state_update so
	// a client that raced the REST join still converges.
	if s.PartnerUserID != "" {
		r.broadcast(mustMessage(types.EventPartnerJoined, types.PartnerJoinedPayload{
			Message: "Your partner has joined!",
			Session: s,
		}))
		r.broadcast(mustMessage(types.EventStateUpdate, types.StateUpdate{
			Type:    types.UpdatePartnerJoined,
			Session: &s,
		}))
	}

	r.log.Info("member joined room",
		zap.String("session_id", r.sessionID),
		zap.String("user_id", msg.UserID),
		zap.String("role", role))
}

func (r *Room) handleLeave(msg Leave) {
	m, ok := r.members[msg.UserID]
	if !ok || m.connID != msg.ConnID {
		// Stale: the member was already replaced by a reconnect, or was
		// never admitted. Still report an idle room so the registry can
		// reap it.
		r.reportIfEmpty()
		return
	}
	delete(r.members, msg.UserID)
	close(m.out)

	r.broadcast(mustMessage(types.EventPartnerDisconnected, types.PartnerDisconnectedPayload{
		Message: "Your partner has disconnected",
	}))
	r.log.Info("member left room",
		zap.String("session_id", r.sessionID),
		zap.String("user_id", msg.UserID))

	r.reportIfEmpty()
}

func (r *Room) reportIfEmpty() {
	if len(r.members) == 0 && r.onEmpty != nil {
		r.onEmpty()
	}
}

func (r *Room) handleClientEvent(m FromClient) {
	switch m.Msg.Event {
	case types.EventAnswerSelected:
		var p types.AnswerSelectedPayload
		if !decode(m.Msg.Data, &p, r, m.UserID) {
			return
		}
		_, err := r.apply(reducer.AnswerSelected{
			UserID:         p.UserID,
			QuestionIndex:  p.QuestionIndex,
			SelectedOption: p.SelectedOption,
		}, nil)
		if err != nil {
			r.send(m.UserID, errorMessage("failed to record answer"))
			return
		}
		r.broadcastExcept(m.UserID, mustMessage(types.EventStateUpdate, types.StateUpdate{
			Type:           types.UpdateAnswerSelected,
			UserID:         p.UserID,
			QuestionIndex:  p.QuestionIndex,
			SelectedOption: p.SelectedOption,
		}))

	case types.EventNextQuestion:
		var p types.NextQuestionPayload
		if !decode(m.Msg.Data, &p, r, m.UserID) {
			return
		}
		_, err := r.apply(reducer.NextQuestion{QuestionIndex: p.QuestionIndex}, nil)
		if err != nil {
			r.send(m.UserID, errorMessage("failed to advance question"))
			return
		}
		r.broadcastExcept(m.UserID, mustMessage(types.EventStateUpdate, types.StateUpdate{
			Type:          types.UpdateNextQuestion,
			QuestionIndex: p.QuestionIndex,
		}))

	case types.EventUpdateTimer:
		var p types.UpdateTimerPayload
		if !decode(m.Msg.Data, &p, r, m.UserID) {
			return
		}
		if _, err := r.apply(reducer.TimerUpdate{TimerSeconds: p.TimerSeconds}, nil); err != nil {
			return
		}
		r.broadcastExcept(m.UserID, mustMessage(types.EventStateUpdate, types.StateUpdate{
			Type:         types.UpdateTimerUpdate,
			TimerSeconds: p.TimerSeconds,
		}))

	case types.EventQuizComplete:
		var p types.QuizCompletePayload
		if !decode(m.Msg.Data, &p, r, m.UserID) {
			return
		}
		updated, err := r.apply(reducer.QuizComplete{
			UserID:    p.UserID,
			Score:     p.Score,
			TimeTaken: p.TimeTaken,
		}, func(s *session.State) {
			if s.Status == session.StatusCompleted && s.CompletedAt == nil {
				done := time.Now()
				s.CompletedAt = &done
			}
		})
		if err != nil {
			r.send(m.UserID, errorMessage("failed to record completion"))
			return
		}
		both := updated.HostScore != nil && updated.PartnerScore != nil
		u := types.StateUpdate{
			Type:          types.UpdateQuizComplete,
			UserID:        p.UserID,
			Score:         p.Score,
			BothCompleted: both,
		}
		if both {
			snap := updated
			u.Session = &snap
		}
		r.broadcast(mustMessage(types.EventStateUpdate, u))
		if both {
			r.pub.SessionFinished(updated)
		}

	case types.EventCancelSession:
		var p types.CancelSessionPayload
		if !decode(m.Msg.Data, &p, r, m.UserID) {
			return
		}
		cancelled := false
		updated, err := r.apply(reducer.SessionCancelled{Reason: p.Reason}, func(s *session.State) {
			if s.Status == session.StatusCancelled && s.CompletedAt == nil {
				done := time.Now()
				s.CompletedAt = &done
				cancelled = true
			}
		})
		if err != nil {
			r.send(m.UserID, errorMessage("failed to cancel session"))
			return
		}
		r.broadcast(mustMessage(types.EventStateUpdate, types.StateUpdate{
			Type:   types.UpdateSessionCancelled,
			Reason: p.Reason,
		}))
		if cancelled {
			r.pub.SessionFinished(updated)
		}

	default:
		r.send(m.UserID, errorMessage("unknown event"))
	}
}

// apply runs one reducer event against the stored session, with an
// optional post-step for server-only fields like timestamps.
func (r *Room) apply(ev reducer.Event, post func(*session.State)) (session.State, error) {
	return r.store.Update(r.ctx, r.sessionID, func(s *session.State) error {
		*s = reducer.Apply(*s, ev)
		if post != nil {
			post(s)
		}
		return nil
	})
}

func (r *Room) send(userID string, msg types.Message) {
	m, ok := r.members[userID]
	if !ok {
		return
	}
	select {
	case m.out <- msg:
	default:
		// Slow member; drop them.
		close(m.out)
		delete(r.members, userID)
	}
}

func (r *Room) broadcast(msg types.Message) {
	for id, m := range r.members {
		select {
		case m.out <- msg:
		default:
			close(m.out)
			delete(r.members, id)
		}
	}
}

func (r *Room) broadcastExcept(skipUserID string, msg types.Message) {
	for id, m := range r.members {
		if id == skipUserID {
			continue
		}
		select {
		case m.out <- msg:
		default:
			close(m.out)
			delete(r.members, id)
		}
	}
}

// shutdown closes every member and then keeps draining the inbox: a
// join racing the teardown gets its outbox closed instead of hanging,
// which tears its connection down and routes it to a fresh room.
func (r *Room) shutdown() {
	for id, m := range r.members {
		close(m.out)
		delete(r.members, id)
	}
	r.cancel()

	for {
		select {
		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				close(msg.Outbox)
			case GetView:
				msg.Reply <- View{}
			}
		case <-r.parent.Done():
			return
		}
	}
}

func decode(data json.RawMessage, v any, r *Room, userID string) bool {
	if err := json.Unmarshal(data, v); err != nil {
		r.send(userID, errorMessage("bad payload"))
		return false
	}
	return true
}

func mustMessage(event string, payload any) types.Message {
	msg, err := types.NewMessage(event, payload)
	if err != nil {
		// Payloads are plain structs; this cannot happen at runtime.
		panic(err)
	}
	return msg
}

func errorMessage(text string) types.Message {
	return mustMessage(types.EventError, types.ErrorPayload{Message: text})
}

// reject answers a join that never became a membership. Closing the
// outbox ends the connection's writer.
func reject(outbox chan types.Message, text string) {
	select {
	case outbox <- errorMessage(text):
	default:
	}
	close(outbox)
}
