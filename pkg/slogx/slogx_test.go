package slogx

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "auth", Level: "debug", Output: &buf})
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) })

	logger.Info("login",
		"email", "user@example.com",
		"password", "Hunter2!x",
		"refresh_token", "abc",
		"mfaSecret", "JBSWY3DP",
		"totp_code", "123456",
		"error_code", "account_locked",
		"token_type", "ACCESS",
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "user@example.com", entry["email"])
	require.Equal(t, "[REDACTED]", entry["password"])
	require.Equal(t, "[REDACTED]", entry["refresh_token"])
	require.Equal(t, "[REDACTED]", entry["mfaSecret"])
	require.Equal(t, "[REDACTED]", entry["totp_code"])
	require.Equal(t, "account_locked", entry["error_code"])
	require.Equal(t, "ACCESS", entry["token_type"])
	require.NotContains(t, buf.String(), "Hunter2!x")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestHTTPMiddleware_AttachesMeta(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var got RequestMeta
	h := HTTPMiddleware(base, func(*http.Request) string { return "203.0.113.9" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = RequestMetaFrom(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set("User-Agent", "unit-test")
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	require.Equal(t, RequestMeta{IP: "203.0.113.9", UserAgent: "unit-test", RequestID: "req-1"}, got)
	require.Contains(t, buf.String(), `"status":418`)
}

func TestHTTPMiddleware_GeneratesRequestID(t *testing.T) {
	base := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	h := HTTPMiddleware(base, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.Header().Get("X-Request-ID"), 26)
}
