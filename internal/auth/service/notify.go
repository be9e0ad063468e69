package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// Notifier delivers account emails. Tokens are opaque to the notifier; it
// embeds them in whatever link format the deployment uses.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// LogNotifier records that an email would have been sent. It is the
// default when no mail transport is configured. The token itself is
// redacted by the logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n LogNotifier) SendVerificationEmail(_ context.Context, to, token string) error {
	n.logger().Info("verification email", slog.String("to", to), slog.String("token", token))
	return nil
}

func (n LogNotifier) SendPasswordResetEmail(_ context.Context, to, token string) error {
	n.logger().Info("password reset email", slog.String("to", to), slog.String("token", token))
	return nil
}

// AsyncNotifier sends through Next on background goroutines so a slow mail
// provider never delays a response. Send errors are logged.
type AsyncNotifier struct {
	Next    Notifier
	Timeout time.Duration

	wg sync.WaitGroup
}

// NewAsyncNotifier wraps next.
func NewAsyncNotifier(next Notifier) *AsyncNotifier {
	return &AsyncNotifier{Next: next, Timeout: 30 * time.Second}
}

func (n *AsyncNotifier) SendVerificationEmail(ctx context.Context, to, token string) error {
	n.dispatch(ctx, "verification", func(ctx context.Context) error {
		return n.Next.SendVerificationEmail(ctx, to, token)
	})
	return nil
}

func (n *AsyncNotifier) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	n.dispatch(ctx, "password_reset", func(ctx context.Context) error {
		return n.Next.SendPasswordResetEmail(ctx, to, token)
	})
	return nil
}

// Wait blocks until every dispatched email has been handed off.
func (n *AsyncNotifier) Wait() { n.wg.Wait() }

func (n *AsyncNotifier) dispatch(ctx context.Context, kind string, send func(context.Context) error) {
	l := slogx.FromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		timeout := n.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			l.Error("failed to send email", slog.String("kind", kind), slog.Any("error", err))
		}
	}()
}
