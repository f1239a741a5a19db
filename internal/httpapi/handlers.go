package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/events"
	"github.com/studyduo/pairquiz/internal/questions"
	"github.com/studyduo/pairquiz/internal/session"
	"github.com/studyduo/pairquiz/internal/store"
)

var (
	errExpired     = errors.New("session has expired")
	errFull        = errors.New("session is already full")
	errNotJoinable = errors.New("session is not available for joining")
	errForbidden   = errors.New("unauthorized to cancel this session")
)

type API struct {
	store store.Store
	pub   events.Publisher
	log   *zap.Logger
	now   func() time.Time
}

func NewAPI(st store.Store, pub events.Publisher, log *zap.Logger) *API {
	return &API{store: st, pub: pub, log: log, now: time.Now}
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID     string             `json:"userId"`
		QuizConfig session.QuizConfig `json:"quizConfig"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	qs := questions.Random(req.QuizConfig.NumQuestions)

	var st session.State
	for {
		code, err := session.GenerateCode()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to generate code")
			return
		}
		st = session.New(uuid.NewString(), code, req.UserID, req.QuizConfig, qs, a.now())
		err = a.store.Create(r.Context(), st)
		if errors.Is(err, store.ErrCodeTaken) {
			a.log.Debug("session code collision, regenerating", zap.String("code", code))
			continue
		}
		if err != nil {
			a.log.Error("create session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create pair quiz")
			return
		}
		break
	}

	a.log.Info("session created",
		zap.String("session_id", st.SessionID),
		zap.String("code", st.SessionCode),
		zap.String("host", st.HostUserID))
	writeJSON(w, http.StatusCreated, st)
}

func (a *API) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		SessionCode string `json:"sessionCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.SessionCode == "" {
		writeError(w, http.StatusBadRequest, "userId and sessionCode are required")
		return
	}

	code, err := session.NormalizeCode(req.SessionCode)
	if err != nil {
		writeError(w, http.StatusNotFound, "Invalid session code")
		return
	}
	found, err := a.store.GetByCode(r.Context(), code)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Invalid session code")
		return
	}
	if err != nil {
		a.log.Error("lookup by code", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to join pair quiz")
		return
	}

	var joinErr error
	updated, err := a.store.Update(r.Context(), found.SessionID, func(s *session.State) error {
		now := a.now()
		if s.Status == session.StatusWaiting && s.Expired(now) {
			// The expiry is persisted even though the join is refused.
			s.Status = session.StatusCancelled
			joinErr = errExpired
			return nil
		}
		if s.PartnerUserID != "" {
			return errFull
		}
		if s.Status != session.StatusWaiting {
			return errNotJoinable
		}
		s.PartnerUserID = req.UserID
		s.Status = session.StatusActive
		started := now
		s.StartedAt = &started
		return nil
	})
	if err == nil {
		err = joinErr
	}
	switch {
	case err == nil:
	case errors.Is(err, errExpired):
		// The expiry flip is a terminal transition like any other.
		a.pub.SessionFinished(updated)
		writeError(w, http.StatusGone, "Session has expired")
		return
	case errors.Is(err, errFull):
		writeError(w, http.StatusConflict, "Session is already full")
		return
	case errors.Is(err, errNotJoinable):
		writeError(w, http.StatusBadRequest, "Session is not available for joining")
		return
	default:
		a.log.Error("join session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to join pair quiz")
		return
	}

	a.log.Info("partner joined",
		zap.String("session_id", updated.SessionID),
		zap.String("partner", req.UserID))
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s, err := a.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		a.log.Error("get session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch session")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (a *API) CancelSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var req struct {
		UserID string `json:"userId"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "User cancelled"
	}

	cancelled := false
	updated, err := a.store.Update(r.Context(), id, func(s *session.State) error {
		if !s.IsParticipant(req.UserID) {
			return errForbidden
		}
		if s.Status.Terminal() {
			return nil // idempotent
		}
		s.Status = session.StatusCancelled
		done := a.now()
		s.CompletedAt = &done
		cancelled = true
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
		return
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "Unauthorized to cancel this session")
		return
	default:
		a.log.Error("cancel session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to cancel session")
		return
	}

	if cancelled {
		a.pub.SessionFinished(updated)
	}
	a.log.Info("session cancelled",
		zap.String("session_id", id),
		zap.String("reason", req.Reason))
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": updated.SessionID,
		"status":    updated.Status,
		"reason":    req.Reason,
	})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
