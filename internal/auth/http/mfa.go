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

// MFAHandler handles TOTP enrollment and removal for the signed in account.
type MFAHandler struct {
	Service *service.AuthService
}

func (h *MFAHandler) currentAccount(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	accountID, ok := httpx.AccountID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return domain.Account{}, false
	}

	acct, err := h.Service.Account(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return domain.Account{}, false
	}
	return acct, true
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Start TOTP enrollment
//	@Description	Generates a candidate secret. Nothing is stored until the enrollment token and a valid code are confirmed.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"Secret, provisioning URI and enrollment token"
//	@Failure		401	{object}	httpx.ErrorBody				"unauthorized"
//	@Failure		409	{object}	authsdk.APIError			"mfa_already_enabled or mfa_requires_password"
//	@Router			/v1/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	enrollment, err := h.Service.MFA.BeginEnrollment(r.Context(), acct)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		EnrollmentToken: enrollment.EnrollmentToken,
		ExpiresIn:       int(jwtx.DefaultEnrollmentTTL.Seconds()),
	})
}

// HandleConfirm handles POST /v1/mfa/totp/confirm
//
//	@Summary		Confirm TOTP enrollment
//	@Description	Enables MFA once the code verifies against the secret carried by the enrollment token.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPConfirmRequest	true	"Enrollment token and code"
//	@Success		204		"MFA enabled"
//	@Failure		401		{object}	authsdk.APIError	"invalid_mfa_code or invalid_token"
//	@Failure		409		{object}	authsdk.APIError	"mfa_already_enabled or mfa_requires_password"
//	@Router			/v1/mfa/totp/confirm [post].
func (h *MFAHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPConfirmRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	if _, err := h.Service.MFA.ConfirmEnrollment(r.Context(), acct, req.EnrollmentToken, req.Code); err != nil {
		writeError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("TOTP enabled", "account_id", acct.ID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles DELETE /v1/mfa/totp
//
//	@Summary		Disable TOTP
//	@Description	Turns MFA off after the password has been proven again.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPDisableRequest	true	"Current password"
//	@Success		204		"MFA disabled"
//	@Failure		401		{object}	authsdk.APIError	"invalid_credentials"
//	@Failure		409		{object}	authsdk.APIError	"mfa_not_enabled"
//	@Router			/v1/mfa/totp [delete].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPDisableRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	acct, ok := h.currentAccount(w, r)
	if !ok {
		return
	}

	if err := h.Service.MFA.Disable(r.Context(), acct, req.Password); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
