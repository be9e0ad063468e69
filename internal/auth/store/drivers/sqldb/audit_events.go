package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
)

type auditEventsRepo struct {
	q queries
}

// MaxAuditPage caps ListAuditEvents.
const MaxAuditPage = 500

func (r *auditEventsRepo) CreateAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	_, err := r.q.exec(ctx, `INSERT INTO audit_events
		(id, event_type, account_id, ip_address, user_agent, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), nullString(e.AccountID), nullString(e.IPAddress),
		nullString(e.UserAgent), nullString(e.Detail), dbTime(e.CreatedAt),
	)
	return r.q.mapWriteErr(err)
}

func (r *auditEventsRepo) ListAuditEvents(ctx context.Context, accountID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 || limit > MaxAuditPage {
		limit = MaxAuditPage
	}

	query := `SELECT id, event_type, account_id, ip_address, user_agent, detail, created_at
		FROM audit_events`
	args := []any{}
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e                       domain.AuditEvent
			typ                     string
			account, ip, ua, detail sql.NullString
			created                 nullTime
		)
		if err := rows.Scan(&e.ID, &typ, &account, &ip, &ua, &detail, &created); err != nil {
			return nil, err
		}
		e.Type = domain.AuditEventType(typ)
		e.AccountID = stringOf(account)
		e.IPAddress = stringOf(ip)
		e.UserAgent = stringOf(ua)
		e.Detail = stringOf(detail)
		e.CreatedAt = created.Time
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *auditEventsRepo) DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `DELETE FROM audit_events WHERE created_at < ?`, dbTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
