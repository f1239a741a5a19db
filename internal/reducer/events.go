package reducer

import (
	"github.com/studyduo/pairquiz/internal/session"
	"github.com/studyduo/pairquiz/pkg/types"
)

// Event is one input to Apply. Events come from three places that are
// deliberately indistinguishable here: the peer's broadcasts, the local
// party's own optimistic actions, and REST snapshots fed through the
// fallback poll.
type Event interface{ isEvent() }

// PartnerJoined carries the authoritative snapshot broadcast when the
// partner joins. Full replace, not merge.
type PartnerJoined struct {
	Session session.State
}

// SnapshotReceived is a REST snapshot (getSession) fed through the same
// replace path as PartnerJoined, so push and pull are interchangeable.
type SnapshotReceived struct {
	Session session.State
}

type AnswerSelected struct {
	UserID         string
	QuestionIndex  int
	SelectedOption string
}

type NextQuestion struct {
	QuestionIndex int
}

// QuizComplete records one party's final score. When BothCompleted is
// set the relay also attaches the authoritative terminal snapshot.
type QuizComplete struct {
	UserID        string
	Score         float64
	TimeTaken     int
	BothCompleted bool
	Session       *session.State
}

type TimerUpdate struct {
	TimerSeconds int
}

type SessionCancelled struct {
	Reason string
}

func (PartnerJoined) isEvent()    {}
func (SnapshotReceived) isEvent() {}
func (AnswerSelected) isEvent()   {}
func (NextQuestion) isEvent()     {}
func (QuizComplete) isEvent()     {}
func (TimerUpdate) isEvent()      {}
func (SessionCancelled) isEvent() {}

// FromStateUpdate converts a wire state_update into a reducer event.
// Unknown types return ok=false and are dropped by the caller.
func FromStateUpdate(u types.StateUpdate) (Event, bool) {
	switch u.Type {
	case types.UpdatePartnerJoined:
		if u.Session == nil {
			return nil, false
		}
		return PartnerJoined{Session: *u.Session}, true
	case types.UpdateAnswerSelected:
		return AnswerSelected{
			UserID:         u.UserID,
			QuestionIndex:  u.QuestionIndex,
			SelectedOption: u.SelectedOption,
		}, true
	case types.UpdateNextQuestion:
		return NextQuestion{QuestionIndex: u.QuestionIndex}, true
	case types.UpdateQuizComplete:
		return QuizComplete{
			UserID:        u.UserID,
			Score:         u.Score,
			BothCompleted: u.BothCompleted,
			Session:       u.Session,
		}, true
	case types.UpdateTimerUpdate:
		return TimerUpdate{TimerSeconds: u.TimerSeconds}, true
	case types.UpdateSessionCancelled:
		return SessionCancelled{Reason: u.Reason}, true
	default:
		return nil, false
	}
}
