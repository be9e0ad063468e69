package domain

import "time"

type AuditEventType string

const (
	AuditLoginSuccess        AuditEventType = "login_success"
	AuditLoginFailure        AuditEventType = "login_failure"
	AuditAccountLocked       AuditEventType = "account_locked"
	AuditLoginBlockedLocked  AuditEventType = "login_blocked_locked"
	AuditLoginNotVerified    AuditEventType = "login_not_verified"
	AuditLoginDisabled       AuditEventType = "login_disabled"
	AuditMFAChallenged       AuditEventType = "mfa_challenged"
	AuditMFAFailure          AuditEventType = "mfa_failure"
	AuditMFAEnabled          AuditEventType = "mfa_enabled"
	AuditMFADisabled         AuditEventType = "mfa_disabled"
	AuditTokenRefreshed      AuditEventType = "token_refreshed"
	AuditRefreshReplay       AuditEventType = "refresh_token_replay"
	AuditLogout              AuditEventType = "logout"
	AuditLogoutAll           AuditEventType = "logout_all"
	AuditAccountRegistered   AuditEventType = "account_registered"
	AuditEmailVerified       AuditEventType = "email_verified"
	AuditPasswordResetIssued AuditEventType = "password_reset_requested"
	AuditPasswordReset       AuditEventType = "password_reset"
	AuditPasswordChanged     AuditEventType = "password_changed"
	AuditIdentityLinked      AuditEventType = "identity_account_created"
	AuditIdentityLogin       AuditEventType = "identity_login"
	AuditIdentityConflict    AuditEventType = "identity_conflict"
)

// AuditEvent is one security-relevant fact. Detail never contains
// passwords, hashes, tokens or secrets.
type AuditEvent struct {
	ID        string // ULID
	Type      AuditEventType
	AccountID string // empty when the account is unknown
	IPAddress string // coarsened
	UserAgent string // truncated
	Detail    string
	CreatedAt time.Time
}
