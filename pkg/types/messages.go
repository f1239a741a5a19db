package types

import (
	"encoding/json"

	"github.com/studyduo/pairquiz/internal/session"
)

// Message is the envelope for everything that crosses the realtime
// channel, in either direction.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals payload into an envelope.
func NewMessage(event string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: data}, nil
}

// Client -> relay events.
const (
	EventJoinSession    = "join_session"
	EventAnswerSelected = "answer_selected"
	EventNextQuestion   = "next_question"
	EventQuizComplete   = "quiz_complete"
	EventUpdateTimer    = "update_timer"
	EventCancelSession  = "cancel_session"
)

// Relay -> client events.
const (
	EventConnected           = "connected"
	EventSessionJoined       = "session_joined"
	EventPartnerJoined       = "partner_joined"
	EventPartnerDisconnected = "partner_disconnected"
	EventStateUpdate         = "state_update"
	EventError               = "error"
)

type JoinSessionPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type AnswerSelectedPayload struct {
	SessionID      string `json:"sessionId"`
	UserID         string `json:"userId"`
	QuestionIndex  int    `json:"questionIndex"`
	SelectedOption string `json:"selectedOption"`
}

type NextQuestionPayload struct {
	SessionID     string `json:"sessionId"`
	QuestionIndex int    `json:"questionIndex"`
}

type QuizCompletePayload struct {
	SessionID string  `json:"sessionId"`
	UserID    string  `json:"userId"`
	Score     float64 `json:"score"`
	TimeTaken int     `json:"timeTaken"`
}

type UpdateTimerPayload struct {
	SessionID    string `json:"sessionId"`
	TimerSeconds int    `json:"timerSeconds"`
}

type CancelSessionPayload struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

type ConnectedPayload struct {
	SID string `json:"sid"`
}

type SessionJoinedPayload struct {
	SessionID string        `json:"sessionId"`
	Role      string        `json:"role"` // "host" | "partner"
	Session   session.State `json:"session"`
}

type PartnerJoinedPayload struct {
	Message string        `json:"message"`
	Session session.State `json:"session"`
}

type PartnerDisconnectedPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// StateUpdate discriminator values.
const (
	UpdatePartnerJoined    = "PARTNER_JOINED"
	UpdateAnswerSelected   = "ANSWER_SELECTED"
	UpdateNextQuestion     = "NEXT_QUESTION"
	UpdateQuizComplete     = "QUIZ_COMPLETE"
	UpdateTimerUpdate      = "TIMER_UPDATE"
	UpdateSessionCancelled = "SESSION_CANCELLED"
)

// StateUpdate is the tagged union carried by state_update events. Only
// the fields relevant to Type are populated.
type StateUpdate struct {
	Type           string         `json:"type"`
	UserID         string         `json:"userId,omitempty"`
	QuestionIndex  int            `json:"questionIndex,omitempty"`
	SelectedOption string         `json:"selectedOption,omitempty"`
	Score          float64        `json:"score,omitempty"`
	BothCompleted  bool           `json:"bothCompleted,omitempty"`
	TimerSeconds   int            `json:"timerSeconds,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Session        *session.State `json:"session,omitempty"`
}
