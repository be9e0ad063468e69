package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
	"github.com/aussiebroadwan/autopay/pkg/cryptox"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// CredentialGate verifies passwords and owns the lockout counter.
type CredentialGate struct {
	Store  store.Store
	Audit  AuditSink
	Config Config
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate checks email and password. The lockout is checked before the
// password so a locked account cannot be probed, and the account status is
// only revealed to a caller that knows the password. A successful result
// resets the counter unless the account still owes a second factor.
func (g *CredentialGate) Authenticate(
	ctx context.Context,
	email, password string,
	meta domain.ClientMeta,
) (domain.Account, error) {
	l := slogx.FromContext(ctx)
	audit := sinkOrNop(g.Audit)
	now := g.Config.now()
	email = NormalizeEmail(email)

	sctx, cancel := g.Config.storage(ctx)
	acct, err := g.Store.Accounts().GetAccountByEmail(sctx, email)
	cancel()
	if errors.Is(err, store.ErrNotFound) {
		cryptox.VerifyDummy(password)
		audit.Record(ctx, event(ctx, domain.AuditLoginFailure, "", meta, "unknown account"))
		return domain.Account{}, ErrAccountNotFound
	}
	if err != nil {
		l.Error("failed to load account", slog.Any("error", err))
		return domain.Account{}, unavailable(err)
	}

	if acct.IsLocked(now) {
		audit.Record(ctx, event(ctx, domain.AuditLoginBlockedLocked, acct.ID, meta, ""))
		return domain.Account{}, ErrAccountLocked
	}

	if !acct.EmailVerified {
		audit.Record(ctx, event(ctx, domain.AuditLoginNotVerified, acct.ID, meta, ""))
		return domain.Account{}, ErrAccountNotVerified
	}

	if !acct.HasPassword() {
		cryptox.VerifyDummy(password)
		audit.Record(ctx, event(ctx, domain.AuditLoginFailure, acct.ID, meta, "no local password"))
		return domain.Account{}, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, acct.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Error("stored password hash unusable", slog.String("account_id", acct.ID), slog.Any("error", err))
			return domain.Account{}, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		if err := g.RecordFailure(ctx, acct.ID, domain.AuditLoginFailure, meta); err != nil {
			return domain.Account{}, err
		}
		return domain.Account{}, ErrInvalidCredentials
	}

	if !acct.IsActive() {
		audit.Record(ctx, event(ctx, domain.AuditLoginDisabled, acct.ID, meta, string(acct.Status)))
		return domain.Account{}, ErrAccountDisabled
	}

	if cryptox.NeedsRehash(acct.PasswordHash) {
		acct = g.upgradeHash(ctx, acct, password)
	}

	if acct.MFAEnabled {
		return acct, nil
	}

	if err := g.RecordSuccess(ctx, &acct, domain.AuditLoginSuccess, meta); err != nil {
		return domain.Account{}, err
	}
	return acct, nil
}

// RecordFailure bumps the shared failure counter for a password or MFA
// failure and audits it. The write survives cancellation of ctx.
func (g *CredentialGate) RecordFailure(
	ctx context.Context,
	accountID string,
	typ domain.AuditEventType,
	meta domain.ClientMeta,
) error {
	audit := sinkOrNop(g.Audit)
	now := g.Config.now()
	threshold := g.Config.maxFailedAttempts()

	sctx, cancel := g.Config.storage(context.WithoutCancel(ctx))
	defer cancel()

	count, lockUntil, err := g.Store.Accounts().IncrementFailedLogins(
		sctx, accountID, threshold, now.Add(g.Config.lockoutDuration()), now,
	)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to record failed login",
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
		return unavailable(err)
	}

	audit.Record(ctx, event(ctx, typ, accountID, meta, fmt.Sprintf("failed_attempts=%d", count)))
	if count >= threshold && lockUntil != nil {
		slogx.FromContext(ctx).Warn("account locked after repeated failures",
			slog.String("account_id", accountID),
			slog.Time("until", *lockUntil),
		)
		audit.Record(ctx, event(ctx, domain.AuditAccountLocked, accountID, meta, ""))
	}
	return nil
}

// RecordSuccess resets the counter, clears any lockout and stamps the login
// time on acct.
func (g *CredentialGate) RecordSuccess(
	ctx context.Context,
	acct *domain.Account,
	typ domain.AuditEventType,
	meta domain.ClientMeta,
) error {
	now := g.Config.now()

	sctx, cancel := g.Config.storage(context.WithoutCancel(ctx))
	defer cancel()

	if err := g.Store.Accounts().ResetFailedLogins(sctx, acct.ID, now); err != nil {
		slogx.FromContext(ctx).Error("failed to reset failed logins",
			slog.String("account_id", acct.ID),
			slog.Any("error", err),
		)
		return unavailable(err)
	}

	acct.FailedLoginCount = 0
	acct.LockoutExpiry = nil
	acct.LastLoginAt = &now
	sinkOrNop(g.Audit).Record(ctx, event(ctx, typ, acct.ID, meta, ""))
	return nil
}

// upgradeHash replaces a legacy or outdated hash after a successful check.
// Failure is logged and otherwise ignored; the old hash still works.
func (g *CredentialGate) upgradeHash(ctx context.Context, acct domain.Account, password string) domain.Account {
	l := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Warn("password rehash failed", slog.Any("error", err))
		return acct
	}

	next := acct
	next.PasswordHash = hash
	next.UpdatedAt = g.Config.now()

	sctx, cancel := g.Config.storage(ctx)
	defer cancel()

	saved, err := g.Store.Accounts().SaveAccount(sctx, next)
	if err != nil {
		l.Warn("password rehash not stored", slog.String("account_id", acct.ID), slog.Any("error", err))
		return acct
	}
	l.Info("password hash upgraded", slog.String("account_id", acct.ID))
	return saved
}
