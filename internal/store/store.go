// Package store persists accounts, pharmacies, the medicine catalog and
// listings. Queries are written with ? placeholders and rebound for the
// connected driver so the same code runs on SQLite and PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to
	// the caller.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store runs queries against a database handle or, inside WithTx, a transaction.
type Store struct {
	db  *sqlx.DB
	q   sqlx.ExtContext
	now func() time.Time
}

// New constructs a Store on db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, q: db, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the clock used for updated_at timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// WithTx runs fn with a Store bound to a new transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.db == nil {
		// Already inside a transaction.
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{q: tx, now: s.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.q.QueryRowxContext(ctx, s.q.Rebind(query), args...).Scan(&id)
	return id, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

// likePattern builds a substring pattern for LOWER(col) LIKE ? ESCAPE '\'.
// SQLite's LOWER folds ASCII only, so every non-ASCII rune becomes a
// single-character wildcard and exact is false: the rows are then a superset
// that matchesQuery must narrow.
func likePattern(query string) (pattern string, exact bool) {
	var b strings.Builder
	exact = true
	b.WriteByte('%')
	for _, r := range strings.ToLower(query) {
		switch {
		case r == '\\' || r == '%' || r == '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r >= utf8.RuneSelf:
			b.WriteByte('_')
			exact = false
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('%')
	return b.String(), exact
}

// matchesQuery reports whether any field contains query, folding case with
// Unicode rules.
func matchesQuery(query string, fields ...string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
