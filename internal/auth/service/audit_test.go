package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestCoarsenIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"203.0.113.77", "203.0.113.0"},
		{"10.1.2.3", "10.1.2.0"},
		{"::ffff:198.51.100.9", "198.51.100.0"},
		{"2001:db8:abcd:12:1:2:3:4", "2001:db8:abcd::"},
		{"not-an-ip", ""},
		{"", ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CoarsenIP(tt.in), "input %q", tt.in)
	}
}

func TestTruncateUA(t *testing.T) {
	t.Parallel()

	require.Equal(t, "curl/8.0", truncateUA("curl/8.0"))
	long := strings.Repeat("é", 150)
	got := truncateUA(long)
	require.LessOrEqual(t, len(got), maxUserAgent)
	require.True(t, strings.HasPrefix(long, got))
}

func TestEvent_FallsBackToRequestMeta(t *testing.T) {
	t.Parallel()

	ctx := slogx.WithRequestMeta(context.Background(), slogx.RequestMeta{IP: "198.51.100.1", UserAgent: "ua"})
	e := event(ctx, domain.AuditLogout, "acct", domain.ClientMeta{}, "")
	require.Equal(t, "198.51.100.1", e.IPAddress)
	require.Equal(t, "ua", e.UserAgent)

	e = event(ctx, domain.AuditLogout, "acct", domain.ClientMeta{IPAddress: "192.0.2.1"}, "")
	require.Equal(t, "192.0.2.1", e.IPAddress)
}

func TestAuditLog_PersistsAndDrains(t *testing.T) {
	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "audit.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	log := NewAuditLog(st, slog.New(slog.NewTextHandler(io.Discard, nil)), 16)
	log.Start()

	for range 5 {
		log.Record(context.Background(), domain.AuditEvent{
			Type:      domain.AuditLoginFailure,
			AccountID: "acct-1",
			IPAddress: "203.0.113.200",
			UserAgent: strings.Repeat("x", 500),
		})
	}
	log.Stop()

	events, err := st.AuditEvents().ListAuditEvents(context.Background(), "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for _, e := range events {
		require.NotEmpty(t, e.ID)
		require.Equal(t, "203.0.113.0", e.IPAddress)
		require.Len(t, e.UserAgent, maxUserAgent)
	}
	require.Zero(t, log.Dropped())
}

func TestAuditLog_DropsWhenFull(t *testing.T) {
	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "audit.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	log := NewAuditLog(st, slog.New(slog.NewTextHandler(io.Discard, nil)), 2)

	// Not started: the buffer fills and further events are dropped
	// without blocking.
	for range 5 {
		log.Record(context.Background(), domain.AuditEvent{Type: domain.AuditLogout})
	}
	require.EqualValues(t, 3, log.Dropped())

	log.Start()
	log.Stop()

	events, err := st.AuditEvents().ListAuditEvents(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
}
