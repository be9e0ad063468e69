package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/pkg/authsdk"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
	"github.com/getsentry/sentry-go"
)

// apiError maps a service error to the public error envelope. It returns nil
// for errors that have no public meaning and must be treated as faults.
func apiError(err error) *authsdk.APIError {
	var exists *service.AccountExistsError
	switch {
	case errors.As(err, &exists):
		e := authsdk.ErrAccountExists.With("an account with this email already exists, sign in with " + string(exists.Provider))
		e.Provider = string(exists.Provider)
		return e

	// Unknown accounts are reported exactly like wrong passwords.
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrAccountLocked):
		return authsdk.ErrAccountLocked
	case errors.Is(err, service.ErrAccountNotVerified):
		return authsdk.ErrAccountNotVerified
	case errors.Is(err, service.ErrAccountDisabled):
		return authsdk.ErrAccountDisabled
	case errors.Is(err, service.ErrAccountAlreadyExists):
		return authsdk.ErrAccountExists

	case errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrTokenMalformed),
		errors.Is(err, service.ErrTokenSignatureInvalid):
		return authsdk.ErrInvalidToken

	case errors.Is(err, service.ErrInvalidMFACode):
		return authsdk.ErrInvalidMFACode
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		return authsdk.ErrMFAAlreadyEnabled
	case errors.Is(err, service.ErrMFANotEnabled):
		return authsdk.ErrMFANotEnabled
	case errors.Is(err, service.ErrMFARequiresPassword):
		return authsdk.ErrMFARequiresPassword

	case errors.Is(err, service.ErrWeakPassword):
		if detail, ok := strings.CutPrefix(err.Error(), service.ErrWeakPassword.Error()+": "); ok {
			return authsdk.ErrWeakPassword.With("password " + detail)
		}
		return authsdk.ErrWeakPassword
	case errors.Is(err, service.ErrInvalidEmail):
		return authsdk.ErrInvalidRequest.With("invalid email address")
	case errors.Is(err, service.ErrUnknownProvider):
		return authsdk.ErrUnknownProvider
	case errors.Is(err, service.ErrMissingIdentityAttribute):
		return authsdk.ErrMissingIdentityAttr

	case errors.Is(err, service.ErrServiceUnavailable):
		return authsdk.ErrServiceUnavailable
	}
	return nil
}

// writeError writes err as its public error. Anything unmapped is logged in
// full, reported to Sentry and answered with a bare server_error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	if e := apiError(err); e != nil {
		if e.StatusCode >= http.StatusInternalServerError {
			log.Warn("request failed", "error_code", e.Code, "err", err)
		} else {
			log.Debug("request rejected", "error_code", e.Code, "err", err)
		}
		e.WriteError(w)
		return
	}

	log.Error("unexpected error", "err", err)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	authsdk.ErrServerError.WriteError(w)
}

// writeRefreshError is writeError for endpoints that take a refresh token,
// where every token failure reads as invalid_refresh_token.
func writeRefreshError(w http.ResponseWriter, r *http.Request, err error) {
	if e := apiError(err); e != nil && e.Code == authsdk.ErrorCodeInvalidToken {
		slogx.FromContext(r.Context()).Debug("refresh token rejected", "err", err)
		authsdk.ErrInvalidRefreshToken.WriteError(w)
		return
	}
	writeError(w, r, err)
}
