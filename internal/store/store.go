// Package store persists pair quiz sessions behind a small interface so
// the HTTP API and the relay can share one source of truth, and so tests
// can run against the in-memory implementation.
package store

import (
	"context"
	"errors"

	"github.com/studyduo/pairquiz/internal/session"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrCodeTaken = errors.New("session code already in use")
)

type Store interface {
	Create(ctx context.Context, s session.State) error
	Get(ctx context.Context, id string) (session.State, error)
	GetByCode(ctx context.Context, code string) (session.State, error)
	// Update runs fn inside an atomic read-modify-write. An error from fn
	// aborts the write and is returned unchanged; on success the stored
	// state after fn is returned.
	Update(ctx context.Context, id string, fn func(*session.State) error) (session.State, error)
}
