package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed record does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an optimistic-concurrency check fails
	ErrConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a unique constraint rejects an insert
	ErrDuplicate = errors.New("duplicate record")
	// ErrAlreadyLinked is returned when an account already has a referrer
	ErrAlreadyLinked = errors.New("account already has a referrer")
	// ErrImmutableField is returned when an update touches a write-once column
	ErrImmutableField = errors.New("field is immutable")
)

// Repository is the gorm-backed account store, points ledger and repair log
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Atomically runs fn against a repository bound to a single database
// transaction. The transaction commits when fn returns nil.
func (r *Repository) Atomically(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return ErrDuplicate
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
