package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	// DefaultAccessTokenTTL is the lifetime of access tokens.
	DefaultAccessTokenTTL = time.Hour

	// DefaultMFAChallengeTTL bounds the window between a correct password and
	// the second factor.
	DefaultMFAChallengeTTL = 5 * time.Minute

	// DefaultEnrollmentTTL bounds how long a candidate TOTP secret can be
	// confirmed after it was shown to the user.
	DefaultEnrollmentTTL = 10 * time.Minute

	// DefaultEmailVerificationTTL and DefaultPasswordResetTTL cover the
	// links sent by email.
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour
)

// TokenType is carried in the tokenType claim and decides where a token may
// be used.
type TokenType string

const (
	TokenTypeAccess            TokenType = "ACCESS"
	TokenTypeRefresh           TokenType = "REFRESH"
	TokenTypeMFARequired       TokenType = "MFA_REQUIRED"
	TokenTypeMFAEnrollment     TokenType = "MFA_ENROLLMENT"
	TokenTypeEmailVerification TokenType = "EMAIL_VERIFICATION"
	TokenTypePasswordReset     TokenType = "PASSWORD_RESET"
)

var knownTypes = []TokenType{
	TokenTypeAccess,
	TokenTypeRefresh,
	TokenTypeMFARequired,
	TokenTypeMFAEnrollment,
	TokenTypeEmailVerification,
	TokenTypePasswordReset,
}

// Valid reports whether t is one of the recognised token types.
func (t TokenType) Valid() bool { return slices.Contains(knownTypes, t) }

// Claims is the payload of every token the service signs. Access tokens carry
// exactly sub, iss, aud, iat, exp, tokenType and authorities; the challenge
// fields below are omitted unless a challenge token needs them.
type Claims struct {
	jwt.RegisteredClaims

	TokenType   TokenType `json:"tokenType"`
	Authorities []string  `json:"authorities"`

	// MFASecret holds the candidate TOTP secret of an MFA_ENROLLMENT token.
	MFASecret string `json:"mfaSecret,omitempty"`

	// PasswordFingerprint binds a PASSWORD_RESET token to the password hash
	// it was issued against, so the token dies once the password changes.
	PasswordFingerprint string `json:"pwdFingerprint,omitempty"`

	// LoginFingerprint binds an MFA_REQUIRED token to the account's last
	// successful login, so the token dies once it has been redeemed.
	LoginFingerprint string `json:"loginFingerprint,omitempty"`
}

// ChallengeData is the optional payload of a challenge token.
type ChallengeData struct {
	MFASecret           string
	PasswordFingerprint string
	LoginFingerprint    string
}

// Validate is called by the jwt parser after the registered claims checks.
func (c Claims) Validate() error {
	if c.Subject == "" || !c.TokenType.Valid() {
		return ErrInvalidClaim
	}
	return nil
}

// HasAuthority reports whether the token grants the given authority.
func (c *Claims) HasAuthority(authority string) bool {
	return slices.Contains(c.Authorities, authority)
}

// ValidateIssuer checks the issuer claim; an empty expectation is not enforced.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks that the expected audience is present.
func (c *Claims) ValidateAudience(expected string) error {
	if expected != "" && !slices.Contains(c.Audience, expected) {
		return ErrAudience
	}
	return nil
}

// ValidateExpiry checks exp against now.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}

func newClaims(
	subject string,
	typ TokenType,
	authorities []string,
	issuer, audience string,
	now time.Time,
	ttl time.Duration,
) Claims {
	if authorities == nil {
		authorities = []string{}
	}
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType:   typ,
		Authorities: authorities,
	}
}
