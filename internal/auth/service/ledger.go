package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/pkg/cryptox"
	"github.com/aussiebroadwan/autopay/pkg/idx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// SessionLedger issues, rotates and revokes refresh tokens. Only token
// fingerprints are stored, and every refresh token can be consumed once.
type SessionLedger struct {
	Store  store.Store
	Audit  AuditSink
	Config Config
}

// Rotate creates a session for account and returns its raw refresh token.
// When predecessor is set it is revoked in the same transaction; if another
// caller already revoked it, nothing is created and ErrTokenRevoked is
// returned.
func (s *SessionLedger) Rotate(
	ctx context.Context,
	account domain.Account,
	predecessor string,
	meta domain.ClientMeta,
) (string, domain.Session, error) {
	now := s.Config.now()

	token, sess, err := s.newSession(account.ID, meta, now)
	if err != nil {
		return "", domain.Session{}, err
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	err = s.Store.WithTx(sctx, func(tx store.Tx) error {
		if predecessor != "" {
			prev, err := s.consume(sctx, tx, predecessor, domain.RevokeReasonRotation, sess.ID, now, meta)
			if err != nil {
				return err
			}
			if prev.AccountID != account.ID {
				return ErrTokenNotFound
			}
		}
		return tx.Sessions().CreateSession(sctx, sess)
	})
	if err != nil {
		return "", domain.Session{}, unavailable(err)
	}
	return token, sess, nil
}

// ValidateAndConsume checks a refresh token and revokes it. Of several
// concurrent callers presenting the same token exactly one succeeds.
func (s *SessionLedger) ValidateAndConsume(ctx context.Context, token string) (domain.Account, error) {
	now := s.Config.now()

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	var acct domain.Account
	err := s.Store.WithTx(sctx, func(tx store.Tx) error {
		sess, err := s.consume(sctx, tx, token, domain.RevokeReasonConsumed, "", now, domain.ClientMeta{})
		if err != nil {
			return err
		}
		acct, err = loadAccount(sctx, tx.Accounts(), sess.AccountID)
		return err
	})
	if err != nil {
		return domain.Account{}, unavailable(err)
	}
	return acct, nil
}

// Exchange consumes token and issues its successor in one transaction. The
// account must still be active.
func (s *SessionLedger) Exchange(
	ctx context.Context,
	token string,
	meta domain.ClientMeta,
) (string, domain.Session, domain.Account, error) {
	now := s.Config.now()

	var (
		acct domain.Account
		next domain.Session
		raw  string
	)

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	err := s.Store.WithTx(sctx, func(tx store.Tx) error {
		var err error
		raw, next, err = s.newSession("", meta, now)
		if err != nil {
			return err
		}

		prev, err := s.consume(sctx, tx, token, domain.RevokeReasonRotation, next.ID, now, meta)
		if err != nil {
			return err
		}

		acct, err = loadAccount(sctx, tx.Accounts(), prev.AccountID)
		if err != nil {
			return err
		}
		if !acct.IsActive() {
			return ErrAccountDisabled
		}

		next.AccountID = acct.ID
		if next.DeviceInfo == "" {
			next.DeviceInfo = prev.DeviceInfo
		}
		return tx.Sessions().CreateSession(sctx, next)
	})
	if err != nil {
		return "", domain.Session{}, domain.Account{}, unavailable(err)
	}

	sinkOrNop(s.Audit).Record(ctx, event(ctx, domain.AuditTokenRefreshed, acct.ID, meta, ""))
	return raw, next, acct, nil
}

// Revoke revokes the session of token. Unknown or already revoked tokens
// are not an error.
func (s *SessionLedger) Revoke(ctx context.Context, token, reason string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	sess, err := s.Store.Sessions().GetSessionByTokenHash(sctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return unavailable(err)
	}
	if sess.Revoked {
		return nil
	}

	if _, err := s.Store.Sessions().RevokeSession(sctx, sess.ID, reason, "", s.Config.now()); err != nil {
		return unavailable(err)
	}
	sinkOrNop(s.Audit).Record(ctx, event(ctx, domain.AuditLogout, sess.AccountID, domain.ClientMeta{}, reason))
	return nil
}

// RevokeAll revokes every live session of the account.
func (s *SessionLedger) RevokeAll(ctx context.Context, accountID, reason string) (int64, error) {
	sctx, cancel := s.Config.storage(context.WithoutCancel(ctx))
	defer cancel()

	n, err := s.Store.Sessions().RevokeAllSessions(sctx, accountID, reason, s.Config.now())
	if err != nil {
		return 0, unavailable(err)
	}
	slogx.FromContext(ctx).Info("sessions revoked",
		slog.String("account_id", accountID),
		slog.String("reason", reason),
		slog.Int64("count", n),
	)
	return n, nil
}

// ActiveSessions counts the unrevoked, unexpired sessions of the account.
func (s *SessionLedger) ActiveSessions(ctx context.Context, accountID string) (int64, error) {
	sctx, cancel := s.Config.storage(ctx)
	defer cancel()

	n, err := s.Store.Sessions().CountActiveSessions(sctx, accountID, s.Config.now())
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *SessionLedger) newSession(accountID string, meta domain.ClientMeta, now time.Time) (string, domain.Session, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", domain.Session{}, err
	}
	return raw, domain.Session{
		ID:         idx.NewAt(now).String(),
		AccountID:  accountID,
		TokenHash:  cryptox.FingerprintToken(raw),
		ExpiresAt:  now.Add(s.Config.refreshTTL()),
		DeviceInfo: meta.DeviceInfo,
		IPAddress:  CoarsenIP(meta.IPAddress),
		CreatedAt:  now,
	}, nil
}

// consume looks a raw refresh token up and revokes it with compare-and-set.
// A token that was already revoked is reported as a replay.
func (s *SessionLedger) consume(
	ctx context.Context,
	tx store.Tx,
	token, reason, replacedBy string,
	now time.Time,
	meta domain.ClientMeta,
) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, ErrTokenNotFound
	}

	sess, err := tx.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrTokenNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}

	if sess.Revoked {
		s.replay(ctx, sess, meta)
		return domain.Session{}, ErrTokenRevoked
	}
	if sess.IsExpired(now) {
		return domain.Session{}, ErrTokenExpired
	}

	won, err := tx.Sessions().RevokeSession(ctx, sess.ID, reason, replacedBy, now)
	if err != nil {
		return domain.Session{}, err
	}
	if !won {
		s.replay(ctx, sess, meta)
		return domain.Session{}, ErrTokenRevoked
	}
	return sess, nil
}

func (s *SessionLedger) replay(ctx context.Context, sess domain.Session, meta domain.ClientMeta) {
	slogx.FromContext(ctx).Warn("revoked refresh token presented",
		slog.String("account_id", sess.AccountID),
		slog.String("session_id", sess.ID),
		slog.String("revoked_reason", sess.RevokedReason),
	)
	sinkOrNop(s.Audit).Record(ctx, event(ctx, domain.AuditRefreshReplay, sess.AccountID, meta, sess.ID))
}

func loadAccount(ctx context.Context, accounts store.Accounts, id string) (domain.Account, error) {
	acct, err := accounts.GetAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	return acct, err
}
