package store

import (
	"context"
	"sync"

	"github.com/studyduo/pairquiz/internal/session"
)

// MemStore keeps sessions in process memory. Used by tests and as the
// dev-mode store when no database is configured.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]session.State
	byCode   map[string]string // code -> session id
}

func NewMemStore() *MemStore {
	return &MemStore{
		sessions: map[string]session.State{},
		byCode:   map[string]string{},
	}
}

func (m *MemStore) Create(_ context.Context, s session.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byCode[s.SessionCode]; taken {
		return ErrCodeTaken
	}
	m.sessions[s.SessionID] = s.Clone()
	m.byCode[s.SessionCode] = s.SessionID
	return nil
}

func (m *MemStore) Get(_ context.Context, id string) (session.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return session.State{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemStore) GetByCode(_ context.Context, code string) (session.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byCode[code]
	if !ok {
		return session.State{}, ErrNotFound
	}
	return m.sessions[id].Clone(), nil
}

func (m *MemStore) Update(_ context.Context, id string, fn func(*session.State) error) (session.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return session.State{}, ErrNotFound
	}
	next := s.Clone()
	if err := fn(&next); err != nil {
		return session.State{}, err
	}
	m.sessions[id] = next
	return next.Clone(), nil
}
