package domain

import "time"

// AccountStatus is the lifecycle state of an account. Accounts are never
// hard-deleted; DELETED is a terminal status.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusDeleted   AccountStatus = "DELETED"
)

type Account struct {
	ID              string // UUIDv7
	Email           string // lower-cased, unique
	PasswordHash    string // argon2id PHC or legacy bcrypt; empty for provider-only accounts
	FirstName       string
	LastName        string
	AvatarURL       string
	Status          AccountStatus
	EmailVerified   bool
	EmailVerifiedAt *time.Time

	// Lockout sub-state. Only the credential gate writes these, through the
	// dedicated counter operations of the store.
	FailedLoginCount int
	LockoutExpiry    *time.Time

	MFAEnabled bool
	MFASecret  string // base32 TOTP secret

	Provider        Provider
	ProviderSubject string

	LastLoginAt *time.Time
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsLocked reports whether a lockout is in force at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockoutExpiry != nil && now.Before(*a.LockoutExpiry)
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool { return a.Status == AccountStatusActive }

// HasPassword is false for accounts created through an identity provider.
func (a *Account) HasPassword() bool { return a.PasswordHash != "" }

// DisplayName joins first and last name.
func (a *Account) DisplayName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}
