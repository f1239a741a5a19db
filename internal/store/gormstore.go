package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studyduo/pairquiz/internal/session"
)

// sessionRecord is the table row. A few columns are broken out for
// indexed lookups; the full session value lives in the payload column,
// which keeps the row in lockstep with the wire shape.
type sessionRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	SessionCode string `gorm:"size:10;uniqueIndex"`
	Status      string `gorm:"size:20;index"`
	HostUserID  string `gorm:"size:255;index"`
	Payload     []byte `gorm:"type:jsonb"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

func (sessionRecord) TableName() string { return "pair_quiz_sessions" }

type GormStore struct {
	db *gorm.DB
}

// OpenGorm connects to Postgres and migrates the sessions table.
// Error translation must stay on: Create relies on duplicate-key
// violations surfacing as gorm.ErrDuplicatedKey.
func OpenGorm(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sessions table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func toRecord(s session.State) (sessionRecord, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return sessionRecord{}, err
	}
	return sessionRecord{
		ID:          s.SessionID,
		SessionCode: s.SessionCode,
		Status:      string(s.Status),
		HostUserID:  s.HostUserID,
		Payload:     payload,
		ExpiresAt:   s.ExpiresAt,
	}, nil
}

func fromRecord(rec sessionRecord) (session.State, error) {
	var s session.State
	if err := json.Unmarshal(rec.Payload, &s); err != nil {
		return session.State{}, fmt.Errorf("decode session %s: %w", rec.ID, err)
	}
	return s, nil
}

func (g *GormStore) Create(ctx context.Context, s session.State) error {
	rec, err := toRecord(s)
	if err != nil {
		return err
	}
	err = g.db.WithContext(ctx).Create(&rec).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrCodeTaken
	}
	return err
}

func (g *GormStore) Get(ctx context.Context, id string) (session.State, error) {
	var rec sessionRecord
	err := g.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.State{}, ErrNotFound
	}
	if err != nil {
		return session.State{}, err
	}
	return fromRecord(rec)
}

func (g *GormStore) GetByCode(ctx context.Context, code string) (session.State, error) {
	var rec sessionRecord
	err := g.db.WithContext(ctx).First(&rec, "session_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.State{}, ErrNotFound
	}
	if err != nil {
		return session.State{}, err
	}
	return fromRecord(rec)
}

func (g *GormStore) Update(ctx context.Context, id string, fn func(*session.State) error) (session.State, error) {
	var out session.State
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec sessionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		s, err := fromRecord(rec)
		if err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}

		next, err := toRecord(s)
		if err != nil {
			return err
		}
		next.CreatedAt = rec.CreatedAt
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return session.State{}, err
	}
	return out, nil
}
