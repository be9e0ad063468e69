package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountLocked        = errors.New("account temporarily locked")
	ErrAccountNotVerified   = errors.New("email address not verified")
	ErrAccountDisabled      = errors.New("account disabled")
	ErrAccountAlreadyExists = errors.New("account already exists")

	ErrTokenExpired          = errors.New("token expired")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrTokenNotFound         = errors.New("token not found")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")

	ErrInvalidMFACode    = errors.New("invalid MFA code")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled")
	ErrMFANotEnabled     = errors.New("MFA not enabled")

	// ErrMFARequiresPassword refuses TOTP for accounts that sign in through
	// an identity provider: their login never asks for a second factor and
	// disabling needs the password.
	ErrMFARequiresPassword = errors.New("MFA requires a local password")

	ErrMissingIdentityAttribute = domain.ErrMissingIdentityAttribute
	ErrUnknownProvider          = domain.ErrUnknownProvider

	ErrWeakPassword = errors.New("password does not meet policy")
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrServiceUnavailable wraps storage faults and timeouts. It is never
	// reported as a credential failure.
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
)

// AccountExistsError is returned when an email is already registered,
// naming the provider that owns it.
type AccountExistsError struct {
	Provider domain.Provider
}

func (e *AccountExistsError) Error() string {
	return fmt.Sprintf("account already exists with provider %s", e.Provider)
}

func (e *AccountExistsError) Unwrap() error { return ErrAccountAlreadyExists }

var known = []error{
	ErrInvalidCredentials, ErrAccountNotFound, ErrAccountLocked, ErrAccountNotVerified,
	ErrAccountDisabled, ErrAccountAlreadyExists,
	ErrTokenExpired, ErrTokenRevoked, ErrTokenNotFound, ErrTokenMalformed, ErrTokenSignatureInvalid,
	ErrInvalidMFACode, ErrMFAAlreadyEnabled, ErrMFANotEnabled, ErrMFARequiresPassword,
	ErrMissingIdentityAttribute, ErrUnknownProvider,
	ErrWeakPassword, ErrInvalidEmail, ErrServiceUnavailable, ErrInternal,
}

func isServiceError(err error) bool {
	for _, k := range known {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// unavailable passes service errors through and wraps everything else
// (storage faults, deadlines) in ErrServiceUnavailable.
func unavailable(err error) error {
	if err == nil || isServiceError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}

// tokenError maps a jwtx verification failure to a service error.
func tokenError(err error) error {
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, jwtx.ErrInvalidSig):
		return ErrTokenSignatureInvalid
	default:
		return fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
}
