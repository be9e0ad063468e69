package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates a password account. The account must verify its email
// before it can log in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/register", req, nil, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) VerifyEmail(ctx context.Context, token string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/verify-email", TokenRequest{Token: token}, nil, nil, http.StatusNoContent)
}

func (c *SDKClient) ResendVerification(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/resend-verification", EmailRequest{Email: email}, nil, nil, http.StatusAccepted)
}

// Login exchanges email and password for tokens.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/login", req, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoginMFA completes a login challenge with a TOTP code.
func (c *SDKClient) LoginMFA(ctx context.Context, req MFALoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/mfa", req, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates a refresh token. The presented token is single-use.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.call(ctx, http.MethodPost, "/v1/auth/refresh", RefreshRequest{RefreshToken: refreshToken}, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes one refresh token. Unknown tokens are not an error.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/logout", LogoutRequest{RefreshToken: refreshToken}, nil, nil, http.StatusNoContent)
}

// ForgotPassword always succeeds, whether or not the email is registered.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/password/forgot", EmailRequest{Email: email}, nil, nil, http.StatusAccepted)
}

func (c *SDKClient) ResetPassword(ctx context.Context, token, newPassword string) error {
	return c.call(ctx, http.MethodPost, "/v1/auth/password/reset", ResetPasswordRequest{Token: token, NewPassword: newPassword}, nil, nil, http.StatusNoContent)
}

// IdentityLogin is called by the trusted OAuth2 gateway after the provider
// handshake. gatewayToken authenticates the gateway itself.
func (c *SDKClient) IdentityLogin(ctx context.Context, gatewayToken, provider string, req IdentityLoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	path := "/v1/identity/" + url.PathEscape(provider) + "/login"
	headers := map[string]string{"X-Identity-Gateway-Token": gatewayToken}
	if err := c.call(ctx, http.MethodPost, path, req, headers, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
