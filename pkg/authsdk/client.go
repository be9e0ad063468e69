package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the auth service. It covers the unauthenticated
// endpoints and hands out Sessions for the rest.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is sent on every request when set.
	UserAgent string
}

// NewSDKClient creates a client with a 10 second timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthenticateWithPassword logs in and wraps the tokens in a Session. When the
// account has TOTP enabled the error is a *MFARequiredError; finish with
// CompleteMFA.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, email, password string) (*Session, error) {
	tokens, err := c.Login(ctx, LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// CompleteMFA answers a login challenge and returns a Session.
func (c *SDKClient) CompleteMFA(ctx context.Context, challenge *MFARequiredError, code string) (*Session, error) {
	tokens, err := c.LoginMFA(ctx, MFALoginRequest{ChallengeToken: challenge.ChallengeToken, Code: code})
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// NewSessionFromTokens resumes a session from stored tokens.
func (c *SDKClient) NewSessionFromTokens(tokens *TokenResponse) *Session {
	return newSession(c, tokens)
}
