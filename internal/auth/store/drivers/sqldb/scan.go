package sqldb

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"
)

// nullTime scans timestamps from drivers that hand back time.Time (pgx,
// sqlite columns with a declared type) as well as the text form sqlite uses
// for expression results.
type nullTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	case int64:
		n.Time, n.Valid = time.Unix(v, 0).UTC(), true
		return nil
	default:
		return fmt.Errorf("sqldb: cannot scan %T into time", src)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("sqldb: unrecognised time %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// dbTime normalises to UTC and strips the monotonic reading.
func dbTime(t time.Time) time.Time { return t.UTC() }

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

var _ sql.Scanner = (*nullTime)(nil)

// nullString maps "" to NULL for optional unique columns.
func nullString(s string) driver.Valuer {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringOf(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
