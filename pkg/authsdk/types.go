package authsdk

import "time"

// TokenResponse is returned by login, MFA completion, refresh and identity
// login.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expiresIn"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type RegisterResponse struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
}

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceInfo string `json:"deviceInfo,omitempty"`
}

type MFALoginRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
	DeviceInfo     string `json:"deviceInfo,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
	DeviceInfo   string `json:"deviceInfo,omitempty"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// TOTPEnrollResponse carries the candidate secret. Nothing is stored until
// the enrollment token and a valid code are sent to confirm.
type TOTPEnrollResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
	EnrollmentToken string `json:"enrollmentToken"`
	ExpiresIn       int    `json:"expiresIn"`
}

type TOTPConfirmRequest struct {
	EnrollmentToken string `json:"enrollmentToken"`
	Code            string `json:"code"`
}

type TOTPDisableRequest struct {
	Password string `json:"password"`
}

// IdentityLoginRequest carries the raw attribute map a trusted OAuth2 gateway
// received from the provider.
type IdentityLoginRequest struct {
	Attributes map[string]any `json:"attributes"`
	DeviceInfo string         `json:"deviceInfo,omitempty"`
}

type SessionCountResponse struct {
	Active int64 `json:"active"`
}

type RevokedResponse struct {
	Revoked int64 `json:"revoked"`
}

type AuditEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	AccountID string    `json:"accountId,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuditEventList struct {
	Events []AuditEvent `json:"events"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency on /readyz.
type HealthChecks struct {
	Database string `json:"database"`
}
