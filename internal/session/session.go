package session

import "time"

// SessionTTL is how long a session stays joinable after creation.
const SessionTTL = 30 * time.Minute

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the session can never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type QuizConfig struct {
	Subject      string `json:"subject"`
	Difficulty   string `json:"difficulty"`
	NumQuestions int    `json:"numQuestions"`
}

type Question struct {
	ID                 int      `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswer      string   `json:"correctAnswer"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// State is the shared value both clients converge toward. It marshals to
// the PairQuizSessionResponse wire shape, so the same struct serves the
// REST snapshots and the channel payloads.
type State struct {
	SessionID            string         `json:"sessionId"`
	SessionCode          string         `json:"sessionCode"`
	Status               Status         `json:"status"`
	HostUserID           string         `json:"hostUserId"`
	PartnerUserID        string         `json:"partnerUserId,omitempty"`
	QuizConfig           QuizConfig     `json:"quizConfig"`
	Questions            []Question     `json:"questions"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	HostAnswers          map[int]string `json:"hostAnswers"`
	PartnerAnswers       map[int]string `json:"partnerAnswers"`
	TimerSeconds         int            `json:"timerSeconds"`
	HostScore            *float64       `json:"hostScore"`
	PartnerScore         *float64       `json:"partnerScore"`
	HostTimeTaken        int            `json:"hostTimeTaken"`
	PartnerTimeTaken     int            `json:"partnerTimeTaken"`
	StartedAt            *time.Time     `json:"startedAt,omitempty"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
	ExpiresAt            time.Time      `json:"expiresAt"`
}

// New builds a fresh waiting session owned by hostUserID.
func New(id, code, hostUserID string, cfg QuizConfig, questions []Question, now time.Time) State {
	return State{
		SessionID:      id,
		SessionCode:    code,
		Status:         StatusWaiting,
		HostUserID:     hostUserID,
		QuizConfig:     cfg,
		Questions:      questions,
		HostAnswers:    map[int]string{},
		PartnerAnswers: map[int]string{},
		ExpiresAt:      now.Add(SessionTTL),
	}
}

// Clone returns a deep copy so callers can mutate without sharing maps
// or slices with the original.
func (s State) Clone() State {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = q
		out.Questions[i].Options = append([]string(nil), q.Options...)
	}
	out.HostAnswers = make(map[int]string, len(s.HostAnswers))
	for k, v := range s.HostAnswers {
		out.HostAnswers[k] = v
	}
	out.PartnerAnswers = make(map[int]string, len(s.PartnerAnswers))
	for k, v := range s.PartnerAnswers {
		out.PartnerAnswers[k] = v
	}
	if s.HostScore != nil {
		v := *s.HostScore
		out.HostScore = &v
	}
	if s.PartnerScore != nil {
		v := *s.PartnerScore
		out.PartnerScore = &v
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

func (s State) IsHost(userID string) bool { return userID == s.HostUserID }

func (s State) IsParticipant(userID string) bool {
	return userID == s.HostUserID || (s.PartnerUserID != "" && userID == s.PartnerUserID)
}

func (s State) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Score is the percentage of questions answered with the correct option.
func Score(questions []Question, answers map[int]string) float64 {
	if len(questions) == 0 {
		return 0
	}
	correct := 0
	for i, q := range questions {
		if answers[i] == q.CorrectAnswer {
			correct++
		}
	}
	return float64(correct) / float64(len(questions)) * 100
}
