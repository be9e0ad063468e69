package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestLedger_ConsumeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("once@example.com")

	token, sess, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
	require.NoError(t, err)
	require.Len(t, token, 43)
	require.Equal(t, cryptox.FingerprintToken(token), sess.TokenHash)
	require.Equal(t, "203.0.113.0", sess.IPAddress)
	require.True(t, sess.ExpiresAt.Equal(f.clock.Now().Add(DefaultRefreshTTL)))

	got, err := f.svc.Ledger.ValidateAndConsume(ctx, token)
	require.NoError(t, err)
	require.Equal(t, acct.ID, got.ID)

	_, err = f.svc.Ledger.ValidateAndConsume(ctx, token)
	require.ErrorIs(t, err, ErrTokenRevoked)
	require.Equal(t, 1, f.audit.Count(domain.AuditRefreshReplay))

	stored, err := f.store.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	require.Equal(t, domain.RevokeReasonConsumed, stored.RevokedReason)
}

func TestLedger_RotateRevokesPredecessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("rotate@example.com")

	t0, s0, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
	require.NoError(t, err)
	t1, s1, err := f.svc.Ledger.Rotate(ctx, acct, t0, testMeta)
	require.NoError(t, err)

	_, err = f.svc.Ledger.ValidateAndConsume(ctx, t0)
	require.ErrorIs(t, err, ErrTokenRevoked)

	_, err = f.svc.Ledger.ValidateAndConsume(ctx, t1)
	require.NoError(t, err)
	_, err = f.svc.Ledger.ValidateAndConsume(ctx, t1)
	require.ErrorIs(t, err, ErrTokenRevoked)

	prev, err := f.store.Sessions().GetSessionByTokenHash(ctx, s0.TokenHash)
	require.NoError(t, err)
	require.Equal(t, domain.RevokeReasonRotation, prev.RevokedReason)
	require.Equal(t, s1.ID, prev.ReplacedBy)

	// A revoked predecessor cannot be rotated again.
	_, _, err = f.svc.Ledger.Rotate(ctx, acct, t0, testMeta)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLedger_RotateRejectsForeignPredecessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createAccount("alice@example.com")
	bob := f.createAccount("bob@example.com")

	aliceToken, _, err := f.svc.Ledger.Rotate(ctx, alice, "", testMeta)
	require.NoError(t, err)

	_, _, err = f.svc.Ledger.Rotate(ctx, bob, aliceToken, testMeta)
	require.ErrorIs(t, err, ErrTokenNotFound)

	// The transaction rolled back, so Alice's token still works.
	_, err = f.svc.Ledger.ValidateAndConsume(ctx, aliceToken)
	require.NoError(t, err)
}

func TestLedger_ExpiredAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("expire@example.com")

	token, _, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
	require.NoError(t, err)

	f.clock.Advance(DefaultRefreshTTL + time.Second)
	_, err = f.svc.Ledger.ValidateAndConsume(ctx, token)
	require.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.svc.Ledger.ValidateAndConsume(ctx, "not-a-token")
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, err = f.svc.Ledger.ValidateAndConsume(ctx, "")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestLedger_ConcurrentExchangeHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("race@example.com")

	token, _, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
	require.NoError(t, err)

	const callers = 8
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		revoked atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _, err := f.svc.Ledger.Exchange(ctx, token, testMeta)
			switch {
			case err == nil:
				wins.Add(1)
			case errorsIsAny(err, ErrTokenRevoked):
				revoked.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, callers-1, revoked.Load())

	n, err := f.svc.Ledger.ActiveSessions(ctx, acct.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestLedger_ExchangeRefusesDisabledAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("frozen@example.com")

	token, _, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
	require.NoError(t, err)

	acct.Status = domain.AccountStatusSuspended
	_, err = f.store.Accounts().SaveAccount(ctx, acct)
	require.NoError(t, err)

	_, _, _, err = f.svc.Ledger.Exchange(ctx, token, testMeta)
	require.ErrorIs(t, err, ErrAccountDisabled)

	n, err := f.svc.Ledger.ActiveSessions(ctx, acct.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n, "the session survives the rolled back exchange")
}

func TestLedger_RevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("logout@example.com")

	token, _, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
	require.NoError(t, err)

	require.NoError(t, f.svc.Ledger.Revoke(ctx, token, domain.RevokeReasonLogout))
	require.NoError(t, f.svc.Ledger.Revoke(ctx, token, domain.RevokeReasonLogout))
	require.NoError(t, f.svc.Ledger.Revoke(ctx, "unknown", domain.RevokeReasonLogout))
	require.NoError(t, f.svc.Ledger.Revoke(ctx, "", domain.RevokeReasonLogout))

	_, err = f.svc.Ledger.ValidateAndConsume(ctx, token)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestLedger_RevokeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.createAccount("everywhere@example.com")
	other := f.createAccount("other@example.com")

	var tokens []string
	for range 3 {
		tok, _, err := f.svc.Ledger.Rotate(ctx, acct, "", testMeta)
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
	_, _, err := f.svc.Ledger.Rotate(ctx, other, "", testMeta)
	require.NoError(t, err)

	n, err := f.svc.Ledger.RevokeAll(ctx, acct.ID, domain.RevokeReasonLogoutAll)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	for _, tok := range tokens {
		_, err := f.svc.Ledger.ValidateAndConsume(ctx, tok)
		require.ErrorIs(t, err, ErrTokenRevoked)
	}

	active, err := f.svc.Ledger.ActiveSessions(ctx, other.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, active)
}
