package http

import (
	"net/http"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/pkg/authsdk"
	"github.com/aussiebroadwan/autopay/pkg/httpx"
	"github.com/aussiebroadwan/autopay/pkg/jwtx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// AuthHandler serves the password, session and email flows under /v1/auth.
type AuthHandler struct {
	Service *service.AuthService
}

// clientMeta describes the caller for sessions and audit events. The logging
// middleware has already resolved the client address.
func clientMeta(r *http.Request, deviceInfo string) domain.ClientMeta {
	rm := slogx.RequestMetaFrom(r.Context())
	meta := domain.ClientMeta{IPAddress: rm.IP, UserAgent: rm.UserAgent, DeviceInfo: deviceInfo}
	if meta.IPAddress == "" {
		meta.IPAddress = httpx.ClientIP(r, false)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = r.UserAgent()
	}
	return meta
}

func (h *AuthHandler) tokenResponse(pair domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(h.Service.Tokens.AccessTTL().Seconds()),
	}
}

func decodeOrReject(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		authsdk.ErrInvalidRequest.With(err.Error()).WriteError(w)
		return false
	}
	return true
}

// HandleRegister handles POST /v1/auth/register
//
//	@Summary		Register an account
//	@Description	Creates an unverified account and sends a verification email.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Registration details"
//	@Success		201		{object}	authsdk.RegisterResponse	"Account created"
//	@Failure		400		{object}	authsdk.APIError			"invalid_request or weak_password"
//	@Failure		409		{object}	authsdk.APIError			"account_already_exists"
//	@Failure		429		{object}	httpx.ErrorBody				"rate_limit_exceeded"
//	@Router			/v1/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	acct, err := h.Service.Register(r.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, clientMeta(r, ""))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{AccountID: acct.ID, Email: acct.Email})
}

// HandleVerifyEmail handles POST /v1/auth/verify-email
//
//	@Summary		Verify an email address
//	@Description	Consumes the token from the verification email. Verifying twice is not an error.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.TokenRequest	true	"Verification token"
//	@Success		204		"Email verified"
//	@Failure		400		{object}	authsdk.APIError	"invalid_request"
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Router			/v1/auth/verify-email [post].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TokenRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	if err := h.Service.VerifyEmail(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResendVerification handles POST /v1/auth/resend-verification
//
//	@Summary		Resend the verification email
//	@Description	Always answers 202 so the endpoint cannot be used to probe for accounts.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.EmailRequest	true	"Email address"
//	@Success		202		"Accepted"
//	@Failure		400		{object}	authsdk.APIError	"invalid_request"
//	@Router			/v1/auth/resend-verification [post].
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	if err := h.Service.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in with email and password
//	@Description	Returns a token pair, or 409 mfa_required with a challenge token when the account has TOTP enabled.
//	@Description	Unknown emails and wrong passwords are indistinguishable. Repeated failures lock the account.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.TokenResponse		"Access and refresh token"
//	@Failure		401		{object}	authsdk.APIError			"invalid_credentials"
//	@Failure		403		{object}	authsdk.APIError			"account_not_verified or account_disabled"
//	@Failure		409		{object}	authsdk.MFARequiredError	"mfa_required"
//	@Failure		423		{object}	authsdk.APIError			"account_locked"
//	@Failure		429		{object}	httpx.ErrorBody				"rate_limit_exceeded"
//	@Failure		503		{object}	authsdk.APIError			"service_unavailable"
//	@Header			200		{string}	Cache-Control				"no-store"
//	@Router			/v1/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		authsdk.ErrInvalidRequest.With("email and password are required").WriteError(w)
		return
	}

	res, err := h.Service.Login(r.Context(), req.Email, req.Password, clientMeta(r, req.DeviceInfo))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if res.Challenge != nil {
		(&authsdk.MFARequiredError{
			ChallengeToken: res.Challenge.ChallengeToken,
			ExpiresIn:      int(jwtx.DefaultMFAChallengeTTL.Seconds()),
		}).WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.tokenResponse(*res.Tokens))
}

// HandleMFA handles POST /v1/auth/mfa
//
//	@Summary		Complete an MFA login
//	@Description	Exchanges the challenge token from login and a TOTP code for a token pair.
//	@Description	Wrong codes count toward the same lockout as wrong passwords.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFALoginRequest	true	"Challenge token and code"
//	@Success		200		{object}	authsdk.TokenResponse	"Access and refresh token"
//	@Failure		401		{object}	authsdk.APIError		"invalid_mfa_code or invalid_token"
//	@Failure		423		{object}	authsdk.APIError		"account_locked"
//	@Router			/v1/auth/mfa [post].
func (h *AuthHandler) HandleMFA(w http.ResponseWriter, r *http.Request) {
	var req authsdk.MFALoginRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		authsdk.ErrInvalidRequest.With("challengeToken and code are required").WriteError(w)
		return
	}

	pair, err := h.Service.CompleteMFA(r.Context(), req.ChallengeToken, req.Code, clientMeta(r, req.DeviceInfo))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.tokenResponse(pair))
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Rotate a refresh token
//	@Description	Consumes the refresh token and returns a new pair. A refresh token works exactly once.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	authsdk.TokenResponse	"Access and refresh token"
//	@Failure		401		{object}	authsdk.APIError		"invalid_refresh_token"
//	@Failure		403		{object}	authsdk.APIError		"account_disabled"
//	@Router			/v1/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decodeOrReject(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		authsdk.ErrInvalidRefreshToken.WriteError(w)
		return
	}

	pair, err := h.Service.Refresh(r.Context(), req.RefreshToken, clientMeta(r, req.DeviceInfo))
	if err != nil {
		writeRefreshError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.tokenResponse(pair))
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Revoke a refresh token
//	@Description	Revoking an already revoked token succeeds.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.LogoutRequest	true	"Refresh token"
//	@Success		204		"Logged out"
//	@Failure		401		{object}	authsdk.APIError	"invalid_refresh_token"
//	@Router			/v1/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LogoutRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	if err := h.Service.Logout(r.Context(), req.RefreshToken); err != nil {
		writeRefreshError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll handles POST /v1/auth/logout-all
//
//	@Summary		Revoke every session
//	@Description	Revokes all refresh tokens of the caller. Access tokens stay valid until they expire.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.RevokedResponse	"Number of sessions revoked"
//	@Failure		401	{object}	httpx.ErrorBody			"unauthorized"
//	@Router			/v1/auth/logout-all [post].
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	n, err := h.Service.LogoutAll(r.Context(), accountID, clientMeta(r, ""))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.RevokedResponse{Revoked: n})
}

// HandleForgotPassword handles POST /v1/auth/password/forgot
//
//	@Summary		Request a password reset
//	@Description	Emails a single-use reset link. Always answers 202.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.EmailRequest	true	"Email address"
//	@Success		202		"Accepted"
//	@Router			/v1/auth/password/forgot [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	if err := h.Service.ForgotPassword(r.Context(), req.Email, clientMeta(r, "")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleResetPassword handles POST /v1/auth/password/reset
//
//	@Summary		Reset a password
//	@Description	Sets a new password with the emailed token, clears any lockout and revokes every session.
//	@Tags			Auth
//	@Accept			json
//	@Param			request	body	authsdk.ResetPasswordRequest	true	"Reset token and new password"
//	@Success		204		"Password reset"
//	@Failure		400		{object}	authsdk.APIError	"weak_password"
//	@Failure		401		{object}	authsdk.APIError	"invalid_token"
//	@Router			/v1/auth/password/reset [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	if err := h.Service.ResetPassword(r.Context(), req.Token, req.NewPassword, clientMeta(r, "")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangePassword handles POST /v1/auth/password/change
//
//	@Summary		Change the password
//	@Description	Re-proves the current password, then revokes every session of the account.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204		"Password changed"
//	@Failure		400		{object}	authsdk.APIError	"weak_password"
//	@Failure		401		{object}	authsdk.APIError	"invalid_credentials"
//	@Router			/v1/auth/password/change [post].
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var req authsdk.ChangePasswordRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	err := h.Service.ChangePassword(r.Context(), accountID, req.CurrentPassword, req.NewPassword, clientMeta(r, ""))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
