package reducer

import "github.com/studyduo/pairquiz/internal/session"

// Apply merges one event into the previous state and returns the next
// state. It never mutates its input, never fails partway, and drops
// stale or unknown input, which is what makes replay and reordering
// safe: per-party/per-index answer writes are idempotent and commute
// across keys, the cursor is monotonic, and trust-critical transitions
// (join, completion) adopt the server snapshot wholesale.
func Apply(s session.State, ev Event) session.State {
	// Terminal sessions never change again.
	if s.Status.Terminal() {
		return s
	}

	switch ev := ev.(type) {
	case PartnerJoined:
		return replace(s, ev.Session)

	case SnapshotReceived:
		return replace(s, ev.Session)

	case AnswerSelected:
		if s.Status != session.StatusActive {
			return s
		}
		if ev.QuestionIndex < 0 || ev.QuestionIndex >= len(s.Questions) {
			return s
		}
		next := s.Clone()
		if ev.UserID == s.HostUserID {
			next.HostAnswers[ev.QuestionIndex] = ev.SelectedOption
		} else {
			next.PartnerAnswers[ev.QuestionIndex] = ev.SelectedOption
		}
		return next

	case NextQuestion:
		if s.Status != session.StatusActive {
			return s
		}
		// Monotonic cursor: a stale or duplicated event never regresses it.
		if ev.QuestionIndex < s.CurrentQuestionIndex || ev.QuestionIndex >= len(s.Questions) {
			return s
		}
		next := s.Clone()
		next.CurrentQuestionIndex = ev.QuestionIndex
		return next

	case QuizComplete:
		if s.Status != session.StatusActive {
			return s
		}
		if ev.BothCompleted && ev.Session != nil {
			next := replace(s, *ev.Session)
			next.Status = session.StatusCompleted
			return next
		}
		next := s.Clone()
		if ev.UserID == s.HostUserID {
			if next.HostScore != nil {
				return s // write-once per owner
			}
			score := ev.Score
			next.HostScore = &score
			next.HostTimeTaken = ev.TimeTaken
		} else {
			if next.PartnerScore != nil {
				return s
			}
			score := ev.Score
			next.PartnerScore = &score
			next.PartnerTimeTaken = ev.TimeTaken
		}
		if next.HostScore != nil && next.PartnerScore != nil {
			next.Status = session.StatusCompleted
		}
		return next

	case TimerUpdate:
		// Advisory display value only; never drives a transition.
		next := s.Clone()
		next.TimerSeconds = ev.TimerSeconds
		return next

	case SessionCancelled:
		next := s.Clone()
		next.Status = session.StatusCancelled
		return next

	default:
		return s
	}
}

// replace adopts an authoritative snapshot wholesale, with one guard:
// the cursor keeps whichever index is highest. A reordered snapshot must
// not walk a client backwards through questions it already advanced past
// (assumption: highest index wins, pending product confirmation).
func replace(local session.State, incoming session.State) session.State {
	next := incoming.Clone()
	if local.CurrentQuestionIndex > next.CurrentQuestionIndex {
		next.CurrentQuestionIndex = local.CurrentQuestionIndex
	}
	if next.HostAnswers == nil {
		next.HostAnswers = map[int]string{}
	}
	if next.PartnerAnswers == nil {
		next.PartnerAnswers = map[int]string{}
	}
	return next
}
