package domain

import "time"

// Revocation reasons recorded on sessions.
const (
	RevokeReasonRotation       = "rotation"
	RevokeReasonConsumed       = "consumed"
	RevokeReasonLogout         = "logout"
	RevokeReasonLogoutAll      = "logout_all"
	RevokeReasonPasswordChange = "password_change"
	RevokeReasonPasswordReset  = "password_reset"
)

// Session is the stored record of one refresh token. Only the SHA-256
// fingerprint of the token is kept. Revoked sessions stay in place for audit
// and are never reactivated.
type Session struct {
	ID            string // ULID
	AccountID     string
	TokenHash     string
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason string
	ReplacedBy    string // successor session on rotation
	DeviceInfo    string
	IPAddress     string
	CreatedAt     time.Time
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *Session) IsExpired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// IsUsable reports whether the refresh token may still be exchanged.
func (s *Session) IsUsable(now time.Time) bool { return !s.Revoked && !s.IsExpired(now) }
