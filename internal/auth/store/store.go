package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by optimistic writes when the row changed since
	// it was read.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable, and so that a transaction is only ever opened from the root.
type Store interface {
	Accounts() Accounts
	Sessions() Sessions
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing if it returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (domain.Account, error)

	// GetAccountByEmail expects an already lower-cased email.
	GetAccountByEmail(ctx context.Context, email string) (domain.Account, error)

	GetAccountByProvider(ctx context.Context, provider domain.Provider, subject string) (domain.Account, error)

	// CreateAccount inserts a new account at version 1. A duplicate email or
	// provider identity yields ErrAlreadyExists.
	CreateAccount(ctx context.Context, a domain.Account) error

	// SaveAccount writes the profile, credential, MFA and status fields if
	// a.Version still matches, and bumps the version. The lockout fields are
	// never written here so a stale copy cannot undo a concurrent increment.
	SaveAccount(ctx context.Context, a domain.Account) (domain.Account, error)

	// IncrementFailedLogins atomically bumps the counter and, when it reaches
	// threshold, sets the lockout expiry in the same statement. It returns
	// the new count and the lockout expiry in force afterwards.
	IncrementFailedLogins(ctx context.Context, id string, threshold int, lockUntil, now time.Time) (int, *time.Time, error)

	// ResetFailedLogins zeroes the counter, clears any lockout and records
	// the successful login time.
	ResetFailedLogins(ctx context.Context, id string, at time.Time) error

	// ClearLockout zeroes the counter and clears any lockout without
	// touching the last login time.
	ClearLockout(ctx context.Context, id string, at time.Time) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByTokenHash looks a session up by refresh token fingerprint.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// RevokeSession revokes a live session. It reports false when the
	// session was already revoked (compare-and-set), which is how concurrent
	// consumers of one refresh token are told apart.
	RevokeSession(ctx context.Context, id, reason, replacedBy string, at time.Time) (bool, error)

	// RevokeAllSessions revokes every live session of the account and
	// returns how many were affected.
	RevokeAllSessions(ctx context.Context, accountID, reason string, at time.Time) (int64, error)

	// CountActiveSessions counts unrevoked, unexpired sessions.
	CountActiveSessions(ctx context.Context, accountID string, now time.Time) (int64, error)

	// DeleteSessionsExpiredBefore is housekeeping for long dead rows.
	DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditEvents interface {
	CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEvents returns newest first. An empty accountID lists all.
	ListAuditEvents(ctx context.Context, accountID string, limit int) ([]domain.AuditEvent, error)

	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
