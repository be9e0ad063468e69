package domain

import "time"

// TokenPair is what a completed authentication returns: a short-lived JWT
// access token and an opaque single-use refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	AccountID        string
}

// ExpiresIn returns the access token lifetime remaining at now, in seconds.
func (p TokenPair) ExpiresIn(now time.Time) int {
	return max(int(p.AccessExpiresAt.Sub(now).Seconds()), 0)
}

// MFAChallenge is returned instead of a TokenPair when the password was
// correct but the account still owes a TOTP code.
type MFAChallenge struct {
	ChallengeToken string
	ExpiresAt      time.Time
}

// LoginResult holds exactly one of Tokens or Challenge.
type LoginResult struct {
	Tokens    *TokenPair
	Challenge *MFAChallenge
}

// ClientMeta describes the caller of an operation for sessions and audit.
type ClientMeta struct {
	IPAddress  string
	UserAgent  string
	DeviceInfo string
}
