// Package sqldb holds the database/sql repositories shared by the sqlite and
// postgres drivers. Queries are written with ? placeholders and rebound per
// dialect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/autopay/internal/auth/store"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures what differs between drivers.
type Dialect struct {
	Name string

	// Numbered switches ? placeholders to $1, $2, ...
	Numbered bool

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
}

// Rebind rewrites ? placeholders for numbered dialects. Queries in this
// package never contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrator applies the driver's embedded migrations.
type Migrator func(db *sql.DB) error

type queries struct {
	db DBTX
	d  Dialect
}

func (q queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.d.Rebind(query), args...)
}

func (q queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.d.Rebind(query), args...)
}

func (q queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.d.Rebind(query), args...)
}

func (q queries) mapWriteErr(err error) error {
	if err != nil && q.d.IsUniqueViolation != nil && q.d.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
	}
	return err
}

// Store implements store.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	migrate Migrator
}

var _ store.Store = (*Store)(nil)

// New wraps an open database.
func New(db *sql.DB, dialect Dialect, migrate Migrator) *Store {
	return &Store{db: db, dialect: dialect, migrate: migrate}
}

// DB exposes the underlying handle, mostly for tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) q() queries { return queries{db: s.db, d: s.dialect} }

func (s *Store) Accounts() store.Accounts       { return &accountsRepo{q: s.q()} }
func (s *Store) Sessions() store.Sessions       { return &sessionsRepo{q: s.q()} }
func (s *Store) AuditEvents() store.AuditEvents { return &auditEventsRepo{q: s.q()} }

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return errors.New("sqldb: no migrator configured")
	}
	return s.migrate(s.db)
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, dialect: s.dialect}, nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback. fn must only use tx: the sqlite driver runs on a single
// connection and a call on the root store would wait forever.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type txStore struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *txStore) q() queries { return queries{db: t.tx, d: t.dialect} }

func (t *txStore) Accounts() store.Accounts       { return &accountsRepo{q: t.q()} }
func (t *txStore) Sessions() store.Sessions       { return &sessionsRepo{q: t.q()} }
func (t *txStore) AuditEvents() store.AuditEvents { return &auditEventsRepo{q: t.q()} }

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the caller commits or rolls back and the outer DB stays open.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(context.Context) error { return nil }

// ApplyMigrations is a no-op; migrations run before any transaction.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(context.Context, func(tx store.Tx) error) error { return sql.ErrTxDone }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
