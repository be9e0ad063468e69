package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
)

type sessionsRepo struct {
	q queries
}

const sessionColumns = `id, account_id, token_hash, expires_at, revoked, revoked_at,
	revoked_reason, replaced_by, device_info, ip_address, created_at`

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		s                            domain.Session
		reason, replaced, device, ip sql.NullString
		expires, revokedAt, created  nullTime
	)
	if err := row.Scan(
		&s.ID, &s.AccountID, &s.TokenHash, &expires, &s.Revoked, &revokedAt,
		&reason, &replaced, &device, &ip, &created,
	); err != nil {
		return domain.Session{}, err
	}
	s.ExpiresAt = expires.Time
	s.RevokedAt = revokedAt.ptr()
	s.RevokedReason = stringOf(reason)
	s.ReplacedBy = stringOf(replaced)
	s.DeviceInfo = stringOf(device)
	s.IPAddress = stringOf(ip)
	s.CreatedAt = created.Time
	return s, nil
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.exec(ctx, `INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, FALSE, NULL, NULL, NULL, ?, ?, ?)`,
		s.ID, s.AccountID, s.TokenHash, dbTime(s.ExpiresAt),
		nullString(s.DeviceInfo), nullString(s.IPAddress), dbTime(s.CreatedAt),
	)
	return r.q.mapWriteErr(err)
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	row := r.q.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`, hash)
	s, err := scanSession(row)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id, reason, replacedBy string, at time.Time) (bool, error) {
	res, err := r.q.exec(ctx, `UPDATE sessions
		SET revoked = TRUE, revoked_at = ?, revoked_reason = ?, replaced_by = ?
		WHERE id = ? AND revoked = FALSE`,
		dbTime(at), reason, nullString(replacedBy), id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *sessionsRepo) RevokeAllSessions(ctx context.Context, accountID, reason string, at time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `UPDATE sessions
		SET revoked = TRUE, revoked_at = ?, revoked_reason = ?
		WHERE account_id = ? AND revoked = FALSE`,
		dbTime(at), reason, accountID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sessionsRepo) CountActiveSessions(ctx context.Context, accountID string, now time.Time) (int64, error) {
	var n int64
	err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM sessions
		WHERE account_id = ? AND revoked = FALSE AND expires_at > ?`,
		accountID, dbTime(now),
	).Scan(&n)
	return n, err
}

func (r *sessionsRepo) DeleteSessionsExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `DELETE FROM sessions WHERE expires_at < ?`, dbTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
