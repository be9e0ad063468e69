package service

import (
	"context"
	"time"
)

// Defaults applied when a Config field is left zero.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 30 * time.Minute
	DefaultRefreshTTL        = 30 * 24 * time.Hour
	DefaultMFAIssuer         = "CC AutoPay"
	DefaultStorageTimeout    = 5 * time.Second
)

// Config holds the tunables shared by the service components.
type Config struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	RefreshTTL        time.Duration
	MFAIssuer         string

	// StorageTimeout bounds the storage work of a single operation.
	StorageTimeout time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c Config) maxFailedAttempts() int {
	if c.MaxFailedAttempts <= 0 {
		return DefaultMaxFailedAttempts
	}
	return c.MaxFailedAttempts
}

func (c Config) lockoutDuration() time.Duration {
	if c.LockoutDuration <= 0 {
		return DefaultLockoutDuration
	}
	return c.LockoutDuration
}

func (c Config) refreshTTL() time.Duration {
	if c.RefreshTTL <= 0 {
		return DefaultRefreshTTL
	}
	return c.RefreshTTL
}

func (c Config) mfaIssuer() string {
	if c.MFAIssuer == "" {
		return DefaultMFAIssuer
	}
	return c.MFAIssuer
}

func (c Config) storage(ctx context.Context) (context.Context, context.CancelFunc) {
	d := c.StorageTimeout
	if d <= 0 {
		d = DefaultStorageTimeout
	}
	return context.WithTimeout(ctx, d)
}
