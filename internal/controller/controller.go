// Package controller drives one participant's side of a pair quiz. It
// owns the local SessionState, feeds every input (REST snapshots, peer
// broadcasts, the local party's own optimistic actions) through the
// reducer, and derives the screen to show from the converged state.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/channel"
	"github.com/studyduo/pairquiz/internal/reducer"
	"github.com/studyduo/pairquiz/internal/session"
	"github.com/studyduo/pairquiz/pkg/types"
)

var (
	ErrNoSession  = errors.New("no session")
	ErrNotActive  = errors.New("session is not active")
	ErrUnanswered = errors.New("current question is unanswered")
)

type Screen string

const (
	ScreenLobby   Screen = "lobby"
	ScreenQuiz    Screen = "quiz"
	ScreenResults Screen = "results"
)

// Bootstrap is the session-lifecycle REST surface the controller calls.
type Bootstrap interface {
	CreateSession(ctx context.Context, userID string, cfg session.QuizConfig) (session.State, error)
	JoinSession(ctx context.Context, userID, code string) (session.State, error)
	GetSession(ctx context.Context, sessionID string) (session.State, error)
	CancelSession(ctx context.Context, sessionID, userID, reason string) error
}

type Controller struct {
	userID       string
	api          Bootstrap
	ch           channel.Channel
	log          *zap.Logger
	pollInterval time.Duration

	mu        sync.Mutex
	state     *session.State
	startedAt time.Time
	banner    string
	offs      []func()
	pollStop  chan struct{}
}

// New wires the controller onto an already-constructed channel. The
// channel's lifecycle (Connect/Disconnect) stays with the caller.
func New(userID string, api Bootstrap, ch channel.Channel, log *zap.Logger) *Controller {
	c := &Controller{
		userID:       userID,
		api:          api,
		ch:           ch,
		log:          log,
		pollInterval: 3 * time.Second,
	}
	c.subscribe()
	return c
}

func (c *Controller) subscribe() {
	c.offs = append(c.offs,
		c.ch.On(types.EventStateUpdate, func(data json.RawMessage) {
			var u types.StateUpdate
			if err := json.Unmarshal(data, &u); err != nil {
				c.log.Warn("bad state_update payload", zap.Error(err))
				return
			}
			ev, ok := reducer.FromStateUpdate(u)
			if !ok {
				c.log.Debug("dropping unknown state_update", zap.String("type", u.Type))
				return
			}
			c.apply(ev)
		}),
		c.ch.On(types.EventPartnerJoined, func(data json.RawMessage) {
			var p types.PartnerJoinedPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return
			}
			c.apply(reducer.PartnerJoined{Session: p.Session})
		}),
		c.ch.On(types.EventSessionJoined, func(data json.RawMessage) {
			var p types.SessionJoinedPayload
			if err := json.Unmarshal(data, &p); err != nil {
				return
			}
			c.apply(reducer.SnapshotReceived{Session: p.Session})
		}),
		c.ch.On(types.EventPartnerDisconnected, func(json.RawMessage) {
			c.apply(reducer.SessionCancelled{Reason: "Your partner has disconnected"})
		}),
		c.ch.On(channel.SignalConnected, func(json.RawMessage) {
			go c.reattach()
		}),
		c.ch.On(channel.SignalConnectionLost, func(json.RawMessage) {
			c.setBanner("Connection lost. Reconnect to continue.")
		}),
		c.ch.On(channel.SignalSocketError, func(json.RawMessage) {
			c.setBanner("Connection problem, retrying...")
		}),
	)
}

// CreateSession creates a waiting session as host, announces presence on
// the channel, and starts the partner-watch poll that makes join
// detection independent of push delivery.
func (c *Controller) CreateSession(ctx context.Context, cfg session.QuizConfig) (session.State, error) {
	s, err := c.api.CreateSession(ctx, c.userID, cfg)
	if err != nil {
		return session.State{}, err
	}

	c.mu.Lock()
	c.state = &s
	c.startedAt = time.Time{}
	c.mu.Unlock()

	c.announce(s.SessionID)
	c.startPartnerWatch(s.SessionID)
	return s, nil
}

// JoinSession joins via a human-shared code; the REST response is already
// the active session, so the quiz clock starts immediately.
func (c *Controller) JoinSession(ctx context.Context, code string) (session.State, error) {
	s, err := c.api.JoinSession(ctx, c.userID, code)
	if err != nil {
		return session.State{}, err
	}

	c.mu.Lock()
	c.state = &s
	if s.Status == session.StatusActive {
		c.startedAt = time.Now()
	}
	c.mu.Unlock()

	c.announce(s.SessionID)
	return s, nil
}

func (c *Controller) announce(sessionID string) {
	err := c.ch.Emit(types.EventJoinSession, types.JoinSessionPayload{
		SessionID: sessionID,
		UserID:    c.userID,
	})
	if err != nil {
		// Not fatal: the poll fallback converges without the channel.
		c.log.Warn("join_session emit failed", zap.Error(err))
	}
}

// SelectAnswer applies the local party's answer optimistically and emits
// it. The relay's later broadcast of the same action replays as a no-op.
func (c *Controller) SelectAnswer(questionIndex int, option string) error {
	sid, err := c.requireActive()
	if err != nil {
		return err
	}

	c.apply(reducer.AnswerSelected{
		UserID:         c.userID,
		QuestionIndex:  questionIndex,
		SelectedOption: option,
	})
	return c.ch.Emit(types.EventAnswerSelected, types.AnswerSelectedPayload{
		SessionID:      sid,
		UserID:         c.userID,
		QuestionIndex:  questionIndex,
		SelectedOption: option,
	})
}

// Advance moves to the next question, or completes the quiz when the
// cursor is on the last one. Advancing past an unanswered question is
// blocked client-side and never reaches the relay.
func (c *Controller) Advance() error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	if c.state.Status != session.StatusActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	st := *c.state
	cur := st.CurrentQuestionIndex
	mine := st.HostAnswers
	if !st.IsHost(c.userID) {
		mine = st.PartnerAnswers
	}
	if _, answered := mine[cur]; !answered {
		c.mu.Unlock()
		return ErrUnanswered
	}
	last := cur == len(st.Questions)-1
	c.mu.Unlock()

	if last {
		return c.complete(st, mine)
	}

	next := cur + 1
	c.apply(reducer.NextQuestion{QuestionIndex: next})
	return c.ch.Emit(types.EventNextQuestion, types.NextQuestionPayload{
		SessionID:     st.SessionID,
		QuestionIndex: next,
	})
}

func (c *Controller) complete(st session.State, mine map[int]string) error {
	score := session.Score(st.Questions, mine)
	elapsed := c.ElapsedSeconds()

	c.apply(reducer.QuizComplete{
		UserID:    c.userID,
		Score:     score,
		TimeTaken: elapsed,
	})
	return c.ch.Emit(types.EventQuizComplete, types.QuizCompletePayload{
		SessionID: st.SessionID,
		UserID:    c.userID,
		Score:     score,
		TimeTaken: elapsed,
	})
}

// Cancel ends the session for both parties: one channel emission plus
// one REST call, no further synchronization.
func (c *Controller) Cancel(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	sid := c.state.SessionID
	c.mu.Unlock()

	if err := c.ch.Emit(types.EventCancelSession, types.CancelSessionPayload{
		SessionID: sid,
		Reason:    reason,
	}); err != nil {
		c.log.Warn("cancel_session emit failed", zap.Error(err))
	}

	err := c.api.CancelSession(ctx, sid, c.userID, reason)
	c.apply(reducer.SessionCancelled{Reason: reason})
	return err
}

// reattach runs whenever the channel reports a live socket. A reconnect
// hands the relay a brand-new anonymous connection, so presence must be
// re-announced before any emission is accepted, and events that fired
// while offline are recovered with a snapshot (nothing is buffered).
func (c *Controller) reattach() {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return
	}
	sid := c.state.SessionID
	c.mu.Unlock()

	c.announce(sid)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := c.api.GetSession(ctx, sid)
	if err != nil {
		c.log.Warn("post-reconnect snapshot failed", zap.Error(err))
		return
	}
	c.apply(reducer.SnapshotReceived{Session: snap})
}

// Resync pulls a fresh snapshot over REST and merges it through the
// usual replace path. This is the recovery path after a reconnect, since
// channel events are never buffered while offline.
func (c *Controller) Resync(ctx context.Context) error {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	sid := c.state.SessionID
	c.mu.Unlock()

	snap, err := c.api.GetSession(ctx, sid)
	if err != nil {
		return err
	}
	c.apply(reducer.SnapshotReceived{Session: snap})
	return nil
}

// apply is the single choke point every event goes through, local or
// remote. Events are serialized here, so the reducer itself needs no
// locking.
func (c *Controller) apply(ev reducer.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return
	}
	prev := *c.state
	next := reducer.Apply(prev, ev)

	if prev.Status == session.StatusWaiting && next.Status == session.StatusActive {
		c.startedAt = time.Now()
		c.stopPollLocked()
	}
	if next.Status == session.StatusCancelled && prev.Status != session.StatusCancelled {
		if sc, ok := ev.(reducer.SessionCancelled); ok && sc.Reason != "" {
			c.banner = sc.Reason
		} else if c.banner == "" {
			c.banner = "Session cancelled"
		}
		c.stopPollLocked()
	}
	c.state = &next
}

// startPartnerWatch polls getSession while the session stays waiting.
// The snapshot feeds the same replace path as the partner_joined push
// event, so whichever arrives first wins and the other is a no-op.
func (c *Controller) startPartnerWatch(sessionID string) {
	c.mu.Lock()
	c.stopPollLocked()
	stop := make(chan struct{})
	c.pollStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				waiting := c.state != nil &&
					c.state.SessionID == sessionID &&
					c.state.Status == session.StatusWaiting
				c.mu.Unlock()
				if !waiting {
					return
				}

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				snap, err := c.api.GetSession(ctx, sessionID)
				cancel()
				if err != nil {
					c.log.Warn("partner watch poll failed", zap.Error(err))
					continue
				}
				c.apply(reducer.SnapshotReceived{Session: snap})
			}
		}
	}()
}

func (c *Controller) stopPollLocked() {
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
}

// Close unsubscribes from the channel and stops the partner watch. It
// does not disconnect the channel, which the controller does not own.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopPollLocked()
	offs := c.offs
	c.offs = nil
	c.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

// Screen derives the UI screen purely from converged state. Cancelled
// sessions map back to the lobby; the reason stays in Banner until the
// user dismisses it.
func (c *Controller) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == nil {
		return ScreenLobby
	}
	switch c.state.Status {
	case session.StatusActive:
		return ScreenQuiz
	case session.StatusCompleted:
		return ScreenResults
	default:
		return ScreenLobby
	}
}

// State returns a copy of the current session, if any.
func (c *Controller) State() (session.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return session.State{}, false
	}
	return c.state.Clone(), true
}

// Reset clears a terminal session so the UI can return to a clean lobby.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil && c.state.Status.Terminal() {
		c.state = nil
		c.startedAt = time.Time{}
	}
}

func (c *Controller) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != nil && c.state.IsHost(c.userID)
}

// MyAnswers and PartnerAnswers are role-relative projections of the
// symmetric session fields; the same indirection lets identical reducer
// code serve both participants.
func (c *Controller) MyAnswers() map[int]string {
	mine, _ := c.answers()
	return mine
}

func (c *Controller) PartnerAnswers() map[int]string {
	_, theirs := c.answers()
	return theirs
}

func (c *Controller) answers() (mine, theirs map[int]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return map[int]string{}, map[int]string{}
	}
	s := c.state.Clone()
	if s.IsHost(c.userID) {
		return s.HostAnswers, s.PartnerAnswers
	}
	return s.PartnerAnswers, s.HostAnswers
}

func (c *Controller) MyScore() *float64 {
	mine, _ := c.scores()
	return mine
}

func (c *Controller) PartnerScore() *float64 {
	_, theirs := c.scores()
	return theirs
}

func (c *Controller) scores() (mine, theirs *float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil, nil
	}
	s := c.state.Clone()
	if s.IsHost(c.userID) {
		return s.HostScore, s.PartnerScore
	}
	return s.PartnerScore, s.HostScore
}

// ElapsedSeconds is the local party's quiz clock, counted from the
// moment the session went active for this client.
func (c *Controller) ElapsedSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return int(time.Since(c.startedAt).Seconds())
}

func (c *Controller) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

func (c *Controller) DismissBanner() {
	c.setBanner("")
}

func (c *Controller) setBanner(msg string) {
	c.mu.Lock()
	c.banner = msg
	c.mu.Unlock()
}

func (c *Controller) requireActive() (sessionID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return "", ErrNoSession
	}
	if c.state.Status != session.StatusActive {
		return "", ErrNotActive
	}
	return c.state.SessionID, nil
}
