package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/autopay/pkg/httpx"
)

// Error codes returned in the "error" field of every failure response.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidCredentials   = "invalid_credentials"
	ErrorCodeAccountLocked        = "account_locked"
	ErrorCodeAccountNotVerified   = "account_not_verified"
	ErrorCodeAccountDisabled      = "account_disabled"
	ErrorCodeAccountExists        = "account_already_exists"
	ErrorCodeInvalidRefreshToken  = "invalid_refresh_token"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeInvalidMFACode       = "invalid_mfa_code"
	ErrorCodeMFARequired          = "mfa_required"
	ErrorCodeMFAAlreadyEnabled    = "mfa_already_enabled"
	ErrorCodeMFANotEnabled        = "mfa_not_enabled"
	ErrorCodeMFARequiresPassword  = "mfa_requires_password"
	ErrorCodeWeakPassword         = "weak_password"
	ErrorCodeUnknownProvider      = "unknown_provider"
	ErrorCodeMissingIdentityClaim = "missing_identity_attribute"
	ErrorCodeUnauthorized         = "unauthorized"
	ErrorCodeForbidden            = "forbidden"
	ErrorCodeNotFound             = "not_found"
	ErrorCodeRateLimited          = "rate_limit_exceeded"
	ErrorCodeServiceUnavailable   = "service_unavailable"
	ErrorCodeServerError          = "server_error"
	ErrorCodeConflict             = "conflict"
	ErrorCodeMethodNotAllowed     = "method_not_allowed"
)

// APIError is the JSON error envelope of the auth API. The server writes it
// with WriteError; the client decodes failures into it.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message,omitempty"`

	// Provider names the existing sign-in method on account_already_exists.
	Provider string `json:"provider,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on code so callers can write errors.Is(err, authsdk.ErrAccountLocked).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes the error as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

// With returns a copy carrying a custom message.
func (e *APIError) With(msg string) *APIError {
	c := *e
	c.Message = msg
	return &c
}

var (
	ErrInvalidRequest = &APIError{StatusCode: http.StatusBadRequest, Code: ErrorCodeInvalidRequest, Message: "the request is malformed"}

	// ErrInvalidCredentials also covers unknown accounts so that responses
	// do not reveal which emails are registered.
	ErrInvalidCredentials = &APIError{StatusCode: http.StatusUnauthorized, Code: ErrorCodeInvalidCredentials, Message: "invalid email or password"}
	ErrAccountLocked      = &APIError{StatusCode: http.StatusLocked, Code: ErrorCodeAccountLocked, Message: "account is temporarily locked"}
	ErrAccountNotVerified = &APIError{StatusCode: http.StatusForbidden, Code: ErrorCodeAccountNotVerified, Message: "email address is not verified"}
	ErrAccountDisabled    = &APIError{StatusCode: http.StatusForbidden, Code: ErrorCodeAccountDisabled, Message: "account is disabled"}
	ErrAccountExists      = &APIError{StatusCode: http.StatusConflict, Code: ErrorCodeAccountExists, Message: "an account with this email already exists"}

	ErrInvalidRefreshToken = &APIError{StatusCode: http.StatusUnauthorized, Code: ErrorCodeInvalidRefreshToken, Message: "refresh token is invalid, expired or revoked"}
	ErrInvalidToken        = &APIError{StatusCode: http.StatusUnauthorized, Code: ErrorCodeInvalidToken, Message: "token is invalid or expired"}

	ErrInvalidMFACode      = &APIError{StatusCode: http.StatusUnauthorized, Code: ErrorCodeInvalidMFACode, Message: "invalid verification code"}
	ErrMFAAlreadyEnabled   = &APIError{StatusCode: http.StatusConflict, Code: ErrorCodeMFAAlreadyEnabled, Message: "multi-factor authentication is already enabled"}
	ErrMFANotEnabled       = &APIError{StatusCode: http.StatusConflict, Code: ErrorCodeMFANotEnabled, Message: "multi-factor authentication is not enabled"}
	ErrMFARequiresPassword = &APIError{StatusCode: http.StatusConflict, Code: ErrorCodeMFARequiresPassword, Message: "multi-factor authentication needs a local password, use your identity provider's instead"}
	ErrWeakPassword        = &APIError{StatusCode: http.StatusBadRequest, Code: ErrorCodeWeakPassword, Message: "password does not meet the policy"}
	ErrUnknownProvider     = &APIError{StatusCode: http.StatusBadRequest, Code: ErrorCodeUnknownProvider, Message: "unsupported identity provider"}
	ErrMissingIdentityAttr = &APIError{StatusCode: http.StatusBadRequest, Code: ErrorCodeMissingIdentityClaim, Message: "identity provider did not supply an email"}

	ErrUnauthorized       = &APIError{StatusCode: http.StatusUnauthorized, Code: ErrorCodeUnauthorized, Message: "authentication required"}
	ErrForbidden          = &APIError{StatusCode: http.StatusForbidden, Code: ErrorCodeForbidden, Message: "access denied"}
	ErrNotFound           = &APIError{StatusCode: http.StatusNotFound, Code: ErrorCodeNotFound, Message: "not found"}
	ErrConflict           = &APIError{StatusCode: http.StatusConflict, Code: ErrorCodeConflict, Message: "the resource was modified concurrently, retry"}
	ErrServiceUnavailable = &APIError{StatusCode: http.StatusServiceUnavailable, Code: ErrorCodeServiceUnavailable, Message: "service temporarily unavailable"}
	ErrServerError        = &APIError{StatusCode: http.StatusInternalServerError, Code: ErrorCodeServerError, Message: "internal server error"}
)

// MFARequiredError is returned by login when the account has TOTP enabled.
// It is sent as 409 Conflict because the credentials were valid but a second
// step is needed.
type MFARequiredError struct {
	ChallengeToken string `json:"challengeToken"`
	ExpiresIn      int    `json:"expiresIn"`
}

func (e *MFARequiredError) Error() string {
	return "multi-factor authentication required"
}

// WriteError writes the challenge as a 409 response.
func (e *MFARequiredError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusConflict, map[string]any{
		"error":          ErrorCodeMFARequired,
		"message":        "submit a TOTP code with the challenge token",
		"challengeToken": e.ChallengeToken,
		"expiresIn":      e.ExpiresIn,
	})
}

// parseErrorResponse turns a non-2xx response into a typed error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusConflict {
		var mfa struct {
			Error          string `json:"error"`
			ChallengeToken string `json:"challengeToken"`
			ExpiresIn      int    `json:"expiresIn"`
		}
		if json.Unmarshal(body, &mfa) == nil && mfa.Error == ErrorCodeMFARequired && mfa.ChallengeToken != "" {
			return &MFARequiredError{ChallengeToken: mfa.ChallengeToken, ExpiresIn: mfa.ExpiresIn}
		}
	}

	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
