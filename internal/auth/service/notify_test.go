package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/aussiebroadwan/autopay/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	sent atomic.Int32
	err  error
}

func (n *countingNotifier) SendVerificationEmail(context.Context, string, string) error {
	n.sent.Add(1)
	return n.err
}

func (n *countingNotifier) SendPasswordResetEmail(context.Context, string, string) error {
	n.sent.Add(1)
	return n.err
}

func TestAsyncNotifier_Dispatches(t *testing.T) {
	next := &countingNotifier{}
	n := NewAsyncNotifier(next)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.SendVerificationEmail(ctx, "a@example.com", "tok"))
	require.NoError(t, n.SendPasswordResetEmail(ctx, "a@example.com", "tok"))
	cancel()

	n.Wait()
	require.EqualValues(t, 2, next.sent.Load())
}

func TestAsyncNotifier_SwallowsErrors(t *testing.T) {
	next := &countingNotifier{err: errors.New("smtp down")}
	n := NewAsyncNotifier(next)

	require.NoError(t, n.SendVerificationEmail(context.Background(), "a@example.com", "tok"))
	n.Wait()
	require.EqualValues(t, 1, next.sent.Load())
}

func TestLogNotifier_RedactsToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: slogx.Redact}))

	require.NoError(t, LogNotifier{Logger: logger}.SendPasswordResetEmail(context.Background(), "a@example.com", "secret-token"))
	require.NotContains(t, buf.String(), "secret-token")
	require.Contains(t, buf.String(), "a@example.com")
}

var (
	_ Notifier = (*AsyncNotifier)(nil)
	_ Notifier = LogNotifier{}
)
