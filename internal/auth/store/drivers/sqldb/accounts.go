package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store"
)

type accountsRepo struct {
	q queries
}

const accountColumns = `id, email, password_hash, first_name, last_name, avatar_url, status,
	email_verified, email_verified_at, failed_login_count, lockout_expiry,
	mfa_enabled, mfa_secret, provider, provider_subject, last_login_at,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                                            domain.Account
		passwordHash, mfaSecret, subject, avatar     sql.NullString
		status, provider                             string
		verifiedAt, lockout, lastLogin, created, upd nullTime
	)
	err := row.Scan(
		&a.ID, &a.Email, &passwordHash, &a.FirstName, &a.LastName, &avatar, &status,
		&a.EmailVerified, &verifiedAt, &a.FailedLoginCount, &lockout,
		&a.MFAEnabled, &mfaSecret, &provider, &subject, &lastLogin,
		&a.Version, &created, &upd,
	)
	if err != nil {
		return domain.Account{}, err
	}

	a.PasswordHash = stringOf(passwordHash)
	a.AvatarURL = stringOf(avatar)
	a.Status = domain.AccountStatus(status)
	a.EmailVerifiedAt = verifiedAt.ptr()
	a.LockoutExpiry = lockout.ptr()
	a.MFASecret = stringOf(mfaSecret)
	a.Provider = domain.Provider(provider)
	a.ProviderSubject = stringOf(subject)
	a.LastLoginAt = lastLogin.ptr()
	a.CreatedAt = created.Time
	a.UpdatedAt = upd.Time
	return a, nil
}

func (r *accountsRepo) getOne(ctx context.Context, where string, args ...any) (domain.Account, error) {
	row := r.q.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE `+where, args...)
	a, err := scanAccount(row)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return r.getOne(ctx, `id = ?`, id)
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.getOne(ctx, `email = ?`, email)
}

func (r *accountsRepo) GetAccountByProvider(
	ctx context.Context,
	provider domain.Provider,
	subject string,
) (domain.Account, error) {
	return r.getOne(ctx, `provider = ? AND provider_subject = ?`, string(provider), subject)
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	created := dbTime(a.CreatedAt)
	updated := dbTime(a.UpdatedAt)
	_, err := r.q.exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		a.ID, a.Email, nullString(a.PasswordHash), a.FirstName, a.LastName, nullString(a.AvatarURL), string(a.Status),
		a.EmailVerified, optionalTime(a.EmailVerifiedAt), a.FailedLoginCount, optionalTime(a.LockoutExpiry),
		a.MFAEnabled, nullString(a.MFASecret), string(a.Provider), nullString(a.ProviderSubject), optionalTime(a.LastLoginAt),
		created, updated,
	)
	return r.q.mapWriteErr(err)
}

func (r *accountsRepo) SaveAccount(ctx context.Context, a domain.Account) (domain.Account, error) {
	now := dbTime(a.UpdatedAt)
	res, err := r.q.exec(ctx, `UPDATE accounts SET
			email = ?, password_hash = ?, first_name = ?, last_name = ?, avatar_url = ?,
			status = ?, email_verified = ?, email_verified_at = ?,
			mfa_enabled = ?, mfa_secret = ?, last_login_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		a.Email, nullString(a.PasswordHash), a.FirstName, a.LastName, nullString(a.AvatarURL),
		string(a.Status), a.EmailVerified, optionalTime(a.EmailVerifiedAt),
		a.MFAEnabled, nullString(a.MFASecret), optionalTime(a.LastLoginAt),
		now, a.ID, a.Version,
	)
	if err != nil {
		return domain.Account{}, r.q.mapWriteErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.Account{}, err
	}
	if n == 0 {
		if _, err := r.GetAccountByID(ctx, a.ID); err != nil {
			return domain.Account{}, err
		}
		return domain.Account{}, fmt.Errorf("%w: account %s at version %d", store.ErrConflict, a.ID, a.Version)
	}

	a.Version++
	a.UpdatedAt = now
	return a, nil
}

func (r *accountsRepo) IncrementFailedLogins(
	ctx context.Context,
	id string,
	threshold int,
	lockUntil, now time.Time,
) (int, *time.Time, error) {
	row := r.q.queryRow(ctx, `UPDATE accounts SET
			failed_login_count = failed_login_count + 1,
			lockout_expiry = CASE WHEN failed_login_count + 1 >= ? THEN ? ELSE lockout_expiry END,
			updated_at = ?
		WHERE id = ?
		RETURNING failed_login_count, lockout_expiry`,
		threshold, dbTime(lockUntil), dbTime(now), id,
	)

	var (
		count   int
		lockout nullTime
	)
	if err := row.Scan(&count, &lockout); err != nil {
		return 0, nil, mapNotFound(err)
	}
	return count, lockout.ptr(), nil
}

func (r *accountsRepo) ResetFailedLogins(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.exec(ctx, `UPDATE accounts SET
			failed_login_count = 0, lockout_expiry = NULL, last_login_at = ?, updated_at = ?
		WHERE id = ?`,
		dbTime(at), dbTime(at), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *accountsRepo) ClearLockout(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.exec(ctx, `UPDATE accounts SET
			failed_login_count = 0, lockout_expiry = NULL, updated_at = ?
		WHERE id = ?`,
		dbTime(at), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}
