package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// Session holds an access/refresh token pair and refreshes the access token
// shortly before it expires. Refresh tokens are single-use, so a Session must
// not be copied between processes.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

const refreshBuffer = 30 * time.Second

func newSession(client *SDKClient, tokens *TokenResponse) *Session {
	return &Session{
		client:       client,
		accessToken:  tokens.AccessToken,
		refreshToken: tokens.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshBuffer),
	}
}

// getValidToken returns the access token, refreshing first if it is about to
// expire.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Refresh forces a token rotation.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errors.New("access token expired and no refresh token available")
	}
	tokens, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshBuffer)
	return nil
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

func (s *Session) call(ctx context.Context, method, path string, body, target any, expected int) error {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return err
	}
	return s.client.call(ctx, method, path, body, bearer(token), target, expected)
}

// Logout revokes this session's refresh token.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	token := s.refreshToken
	s.refreshToken = ""
	s.mu.Unlock()

	if token == "" {
		return errors.New("no refresh token to revoke")
	}
	return s.client.Logout(ctx, token)
}

// LogoutAll revokes every refresh token of the account.
func (s *Session) LogoutAll(ctx context.Context) (int64, error) {
	var out RevokedResponse
	if err := s.call(ctx, http.MethodPost, "/v1/auth/logout-all", nil, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Revoked, nil
}

// ChangePassword re-proves the current password. All sessions, including
// this one, are revoked on success.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	return s.call(ctx, http.MethodPost, "/v1/auth/password/change",
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, nil, http.StatusNoContent)
}

// ActiveSessions returns the number of live refresh tokens.
func (s *Session) ActiveSessions(ctx context.Context) (int64, error) {
	var out SessionCountResponse
	if err := s.call(ctx, http.MethodGet, "/v1/sessions/count", nil, &out, http.StatusOK); err != nil {
		return 0, err
	}
	return out.Active, nil
}

// EnrollTOTP starts TOTP enrollment.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	var out TOTPEnrollResponse
	if err := s.call(ctx, http.MethodPost, "/v1/mfa/totp/enroll", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmTOTP commits the enrollment once code verifies.
func (s *Session) ConfirmTOTP(ctx context.Context, enrollmentToken, code string) error {
	return s.call(ctx, http.MethodPost, "/v1/mfa/totp/confirm",
		TOTPConfirmRequest{EnrollmentToken: enrollmentToken, Code: code}, nil, http.StatusNoContent)
}

// DisableTOTP turns MFA off after re-proving the password.
func (s *Session) DisableTOTP(ctx context.Context, password string) error {
	return s.call(ctx, http.MethodDelete, "/v1/mfa/totp", TOTPDisableRequest{Password: password}, nil, http.StatusNoContent)
}

// ListAuditEvents requires the admin authority.
func (s *Session) ListAuditEvents(ctx context.Context, accountID string, limit int) ([]AuditEvent, error) {
	q := url.Values{}
	q.Set("accountId", accountID)
	q.Set("limit", strconv.Itoa(limit))
	path := "/v1/admin/audit-events?" + q.Encode()
	var out AuditEventList
	if err := s.call(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Events, nil
}
