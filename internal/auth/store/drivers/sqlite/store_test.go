package sqlite_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "auth.db")))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newAccount(t *testing.T, email string) domain.Account {
	t.Helper()
	id, err := idx.NewAccountID()
	require.NoError(t, err)
	return domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Status:       domain.AccountStatusActive,
		Provider:     domain.ProviderLocal,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestAccounts_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "ada@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	got, err := s.Accounts().GetAccountByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, int64(1), got.Version)
	require.Equal(t, domain.ProviderLocal, got.Provider)
	require.Nil(t, got.LockoutExpiry)
	require.True(t, got.CreatedAt.Equal(t0))

	byID, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, got, byID)

	_, err = s.Accounts().GetAccountByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccounts_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.Accounts().CreateAccount(ctx, newAccount(t, "dup@example.com")))
	err := s.Accounts().CreateAccount(ctx, newAccount(t, "dup@example.com"))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestAccounts_ProviderLookup(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "octo@example.com")
	a.PasswordHash = ""
	a.Provider = domain.ProviderGitHub
	a.ProviderSubject = "583231"
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	got, err := s.Accounts().GetAccountByProvider(ctx, domain.ProviderGitHub, "583231")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.False(t, got.HasPassword())

	_, err = s.Accounts().GetAccountByProvider(ctx, domain.ProviderGoogle, "583231")
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := newAccount(t, "other@example.com")
	dup.Provider = domain.ProviderGitHub
	dup.ProviderSubject = "583231"
	require.ErrorIs(t, s.Accounts().CreateAccount(ctx, dup), store.ErrAlreadyExists)
}

func TestAccounts_SaveOptimistic(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "opt@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))
	loaded, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)

	first := loaded
	first.MFAEnabled = true
	first.MFASecret = "JBSWY3DPEHPK3PXP"
	first.UpdatedAt = t0.Add(time.Minute)
	saved, err := s.Accounts().SaveAccount(ctx, first)
	require.NoError(t, err)
	require.Equal(t, int64(2), saved.Version)

	stale := loaded
	stale.FirstName = "Stale"
	_, err = s.Accounts().SaveAccount(ctx, stale)
	require.ErrorIs(t, err, store.ErrConflict)

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.MFAEnabled)
	require.Equal(t, "Ada", got.FirstName)

	missing := newAccount(t, "ghost@example.com")
	_, err = s.Accounts().SaveAccount(ctx, missing)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccounts_SaveDoesNotTouchLockout(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "lock@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))
	loaded, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)

	_, _, err = s.Accounts().IncrementFailedLogins(ctx, a.ID, 5, t0.Add(30*time.Minute), t0)
	require.NoError(t, err)

	loaded.FirstName = "Augusta"
	_, err = s.Accounts().SaveAccount(ctx, loaded)
	require.NoError(t, err)

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.FailedLoginCount)
	require.Equal(t, "Augusta", got.FirstName)
}

func TestAccounts_IncrementLocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "brute@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	until := t0.Add(30 * time.Minute)
	for i := 1; i <= 4; i++ {
		n, lock, err := s.Accounts().IncrementFailedLogins(ctx, a.ID, 5, until, t0)
		require.NoError(t, err)
		require.Equal(t, i, n)
		require.Nil(t, lock)
	}

	n, lock, err := s.Accounts().IncrementFailedLogins(ctx, a.ID, 5, until, t0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NotNil(t, lock)
	require.True(t, lock.Equal(until))

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, got.IsLocked(t0))

	require.NoError(t, s.Accounts().ResetFailedLogins(ctx, a.ID, t0.Add(time.Hour)))
	got, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedLoginCount)
	require.Nil(t, got.LockoutExpiry)
	require.NotNil(t, got.LastLoginAt)

	_, _, err = s.Accounts().IncrementFailedLogins(ctx, a.ID, 1, until, t0)
	require.NoError(t, err)
	require.NoError(t, s.Accounts().ClearLockout(ctx, a.ID, t0))
	got, err = s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Zero(t, got.FailedLoginCount)
	require.False(t, got.IsLocked(t0))

	_, _, err = s.Accounts().IncrementFailedLogins(ctx, "missing", 5, until, t0)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccounts_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "race@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	const workers = 20
	counts := make(chan int, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, _, err := s.Accounts().IncrementFailedLogins(ctx, a.ID, 5, t0.Add(time.Hour), t0)
			if err == nil {
				counts <- n
			}
		}()
	}
	wg.Wait()
	close(counts)

	seen := map[int]bool{}
	for n := range counts {
		require.False(t, seen[n], "count %d returned twice", n)
		seen[n] = true
	}
	require.Len(t, seen, workers)

	got, err := s.Accounts().GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, workers, got.FailedLoginCount)
}

func newSession(accountID, hash string, expires time.Time) domain.Session {
	return domain.Session{
		ID:         idx.New().String(),
		AccountID:  accountID,
		TokenHash:  hash,
		ExpiresAt:  expires,
		DeviceInfo: "test",
		IPAddress:  "203.0.113.0",
		CreatedAt:  t0,
	}
}

func TestSessions_RevokeIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "sess@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	sess := newSession(a.ID, "hash-1", t0.Add(24*time.Hour))
	require.NoError(t, s.Sessions().CreateSession(ctx, sess))

	got, err := s.Sessions().GetSessionByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)
	require.False(t, got.Revoked)

	ok, err := s.Sessions().RevokeSession(ctx, sess.ID, domain.RevokeReasonRotation, "successor", t0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Sessions().RevokeSession(ctx, sess.ID, domain.RevokeReasonConsumed, "", t0)
	require.NoError(t, err)
	require.False(t, ok)

	got, err = s.Sessions().GetSessionByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.Equal(t, domain.RevokeReasonRotation, got.RevokedReason)
	require.Equal(t, "successor", got.ReplacedBy)
	require.NotNil(t, got.RevokedAt)

	_, err = s.Sessions().GetSessionByTokenHash(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_RevokeAllAndCount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "many@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	require.NoError(t, s.Sessions().CreateSession(ctx, newSession(a.ID, "h1", t0.Add(time.Hour))))
	require.NoError(t, s.Sessions().CreateSession(ctx, newSession(a.ID, "h2", t0.Add(time.Hour))))
	require.NoError(t, s.Sessions().CreateSession(ctx, newSession(a.ID, "h3", t0.Add(-time.Hour))))

	n, err := s.Sessions().CountActiveSessions(ctx, a.ID, t0)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	revoked, err := s.Sessions().RevokeAllSessions(ctx, a.ID, domain.RevokeReasonLogoutAll, t0)
	require.NoError(t, err)
	require.EqualValues(t, 3, revoked)

	n, err = s.Sessions().CountActiveSessions(ctx, a.ID, t0)
	require.NoError(t, err)
	require.Zero(t, n)

	deleted, err := s.Sessions().DeleteSessionsExpiredBefore(ctx, t0)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)
}

func TestSessions_DuplicateHash(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "duph@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))
	require.NoError(t, s.Sessions().CreateSession(ctx, newSession(a.ID, "same", t0.Add(time.Hour))))
	require.ErrorIs(t, s.Sessions().CreateSession(ctx, newSession(a.ID, "same", t0.Add(time.Hour))), store.ErrAlreadyExists)
}

func TestWithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := newAccount(t, "tx@example.com")
	require.NoError(t, s.Accounts().CreateAccount(ctx, a))

	boom := store.ErrConflict
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().CreateSession(ctx, newSession(a.ID, "in-tx", t0.Add(time.Hour))); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Sessions().GetSessionByTokenHash(ctx, "in-tx")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Sessions().CreateSession(ctx, newSession(a.ID, "committed", t0.Add(time.Hour)))
	}))
	_, err = s.Sessions().GetSessionByTokenHash(ctx, "committed")
	require.NoError(t, err)
}

func TestAuditEvents(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i, typ := range []domain.AuditEventType{domain.AuditLoginFailure, domain.AuditAccountLocked, domain.AuditLoginSuccess} {
		require.NoError(t, s.AuditEvents().CreateAuditEvent(ctx, domain.AuditEvent{
			ID:        idx.New().String(),
			Type:      typ,
			AccountID: "acct-1",
			IPAddress: "203.0.113.0",
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.AuditEvents().CreateAuditEvent(ctx, domain.AuditEvent{
		ID:        idx.New().String(),
		Type:      domain.AuditLoginFailure,
		CreatedAt: t0.Add(-400 * 24 * time.Hour),
	}))

	events, err := s.AuditEvents().ListAuditEvents(ctx, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, domain.AuditLoginSuccess, events[0].Type)
	require.Equal(t, domain.AuditLoginFailure, events[2].Type)

	all, err := s.AuditEvents().ListAuditEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)

	n, err := s.AuditEvents().DeleteAuditEventsBefore(ctx, t0.Add(-365*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestDSN(t *testing.T) {
	dsn := sqlite.DSN("/var/lib/auth/auth.db")
	require.Contains(t, dsn, "file:/var/lib/auth/auth.db?")
	require.Contains(t, dsn, "_time_format=sqlite")
	require.Contains(t, dsn, "_pragma=busy_timeout%285000%29")
}
