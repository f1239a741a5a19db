package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyduo/pairquiz/internal/session"
	"github.com/studyduo/pairquiz/internal/store"
)

// publishRecorder captures session lifecycle events for assertions.
type publishRecorder struct {
	mu       sync.Mutex
	finished []session.State
}

func (p *publishRecorder) SessionFinished(s session.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, s)
}

func (p *publishRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.finished)
}

func newTestServer(t *testing.T) (*httptest.Server, *store.MemStore, *publishRecorder) {
	t.Helper()
	st := store.NewMemStore()
	pub := &publishRecorder{}
	api := NewAPI(st, pub, zap.NewNop())
	srv := httptest.NewServer(SetupRoutes(api, func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)
	return srv, st, pub
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) session.State {
	t.Helper()
	var s session.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func createSession(t *testing.T, srv *httptest.Server, userID string) session.State {
	t.Helper()
	resp := postJSON(t, srv.URL+"/pair-quiz/create/", map[string]any{
		"userId":     userID,
		"quizConfig": session.QuizConfig{Subject: "general", NumQuestions: 5},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeSession(t, resp)
}

func TestCreateSession(t *testing.T) {
	srv, _, _ := newTestServer(t)

	s := createSession(t, srv, "host-1")
	require.Regexp(t, regexp.MustCompile(`^QZ-[A-Z0-9]{4}$`), s.SessionCode)
	require.Equal(t, session.StatusWaiting, s.Status)
	require.Equal(t, "host-1", s.HostUserID)
	require.Empty(t, s.PartnerUserID)
	require.Len(t, s.Questions, 5)
	require.True(t, s.ExpiresAt.After(time.Now()))
}

func TestCreateSession_MissingUser(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/pair-quiz/create/", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJoinSession_HappyPath(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createSession(t, srv, "host-1")

	resp := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId":      "partner-1",
		"sessionCode": created.SessionCode,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	joined := decodeSession(t, resp)
	require.Equal(t, session.StatusActive, joined.Status)
	require.Equal(t, "partner-1", joined.PartnerUserID)
	require.NotNil(t, joined.StartedAt)
}

func TestJoinSession_CodeIsCaseInsensitive(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createSession(t, srv, "host-1")

	resp := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId":      "partner-1",
		"sessionCode": "  " + strings.ToLower(created.SessionCode) + "  ",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJoinSession_UnknownCode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId":      "partner-1",
		"sessionCode": "QZ-ZZZZ",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinSession_MalformedCode(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId":      "partner-1",
		"sessionCode": "not a code",
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJoinSession_Full(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createSession(t, srv, "host-1")

	first := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId": "partner-1", "sessionCode": created.SessionCode,
	})
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId": "partner-2", "sessionCode": created.SessionCode,
	})
	require.Equal(t, http.StatusConflict, second.StatusCode)
}

func TestJoinSession_Expired(t *testing.T) {
	srv, st, pub := newTestServer(t)
	created := createSession(t, srv, "host-1")

	_, err := st.Update(context.Background(), created.SessionID, func(s *session.State) error {
		s.ExpiresAt = time.Now().Add(-time.Minute)
		return nil
	})
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/pair-quiz/join/", map[string]string{
		"userId": "partner-1", "sessionCode": created.SessionCode,
	})
	require.Equal(t, http.StatusGone, resp.StatusCode)

	// The expiry is persisted and announced like any other terminal
	// transition.
	stored, err := st.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.StatusCancelled, stored.Status)
	require.Equal(t, 1, pub.count())
	require.Equal(t, session.StatusCancelled, pub.finished[0].Status)
}

func TestGetSession(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created := createSession(t, srv, "host-1")

	resp, err := http.Get(srv.URL + "/pair-quiz/" + created.SessionID + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeSession(t, resp)
	require.Equal(t, created.SessionID, got.SessionID)

	missing, err := http.Get(srv.URL + "/pair-quiz/nope/")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCancelSession(t *testing.T) {
	srv, st, pub := newTestServer(t)
	created := createSession(t, srv, "host-1")

	outsider := postJSON(t, srv.URL+"/pair-quiz/"+created.SessionID+"/cancel/", map[string]string{
		"userId": "stranger",
	})
	require.Equal(t, http.StatusForbidden, outsider.StatusCode)

	resp := postJSON(t, srv.URL+"/pair-quiz/"+created.SessionID+"/cancel/", map[string]string{
		"userId": "host-1", "reason": "done for today",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := st.Get(context.Background(), created.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.StatusCancelled, stored.Status)
	require.NotNil(t, stored.CompletedAt)

	// Cancelling an already-terminal session is a no-op, not an error,
	// and must not publish a second finish event.
	again := postJSON(t, srv.URL+"/pair-quiz/"+created.SessionID+"/cancel/", map[string]string{
		"userId": "host-1",
	})
	require.Equal(t, http.StatusOK, again.StatusCode)
	require.Equal(t, 1, pub.count())
}
