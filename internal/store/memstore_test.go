package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/studyduo/pairquiz/internal/session"
)

func seedState(id, code string) session.State {
	return session.New(id, code, "host-1", session.QuizConfig{NumQuestions: 1},
		[]session.Question{{ID: 1, Question: "q", Options: []string{"a", "b"}, CorrectAnswer: "a"}},
		time.Now())
}

func TestMemStore_CreateAndLookup(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, seedState("s1", "QZ-AAAA")))

	byID, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "QZ-AAAA", byID.SessionCode)

	byCode, err := m.GetByCode(ctx, "QZ-AAAA")
	require.NoError(t, err)
	require.Equal(t, "s1", byCode.SessionID)

	_, err = m.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetByCode(ctx, "QZ-ZZZZ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_CodeCollision(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, seedState("s1", "QZ-AAAA")))
	require.ErrorIs(t, m.Create(ctx, seedState("s2", "QZ-AAAA")), ErrCodeTaken)
}

func TestMemStore_UpdateIsTransactional(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, seedState("s1", "QZ-AAAA")))

	boom := errors.New("boom")
	_, err := m.Update(ctx, "s1", func(s *session.State) error {
		s.Status = session.StatusCancelled
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The failed mutation left nothing behind.
	got, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, session.StatusWaiting, got.Status)

	updated, err := m.Update(ctx, "s1", func(s *session.State) error {
		s.Status = session.StatusActive
		s.PartnerUserID = "partner-1"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, session.StatusActive, updated.Status)

	_, err = m.Update(ctx, "missing", func(*session.State) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStore_ReturnsIsolatedCopies(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, seedState("s1", "QZ-AAAA")))

	first, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	first.HostAnswers[0] = "tampered"
	first.Questions[0].Options[0] = "tampered"

	second, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, second.HostAnswers)
	require.Equal(t, "a", second.Questions[0].Options[0])
}
