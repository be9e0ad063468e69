package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/aussiebroadwan/autopay/pkg/authsdk"
	"github.com/aussiebroadwan/autopay/pkg/httpx"
	"github.com/aussiebroadwan/autopay/pkg/slogx"
)

// GatewayTokenHeader authenticates the OAuth2 gateway on identity logins.
const GatewayTokenHeader = "X-Identity-Gateway-Token"

// IdentityHandler signs in accounts whose identity was asserted by the
// trusted OAuth2 gateway. The provider handshake happens in the gateway.
type IdentityHandler struct {
	Auth         *AuthHandler
	GatewayToken string
}

// ServeHTTP godoc
//
//	@Summary		Sign in with an external identity
//	@Description	Resolves the provider attributes to an account, creating one on first sign in, and returns a token pair.
//	@Description	An email already registered with another sign-in method is refused with the existing provider named.
//	@Tags			Identity
//	@Accept			json
//	@Produce		json
//	@Param			provider					path		string							true	"Identity provider"	Enums(GOOGLE, GITHUB, FACEBOOK)
//	@Param			X-Identity-Gateway-Token	header		string							true	"Gateway credential"
//	@Param			request						body		authsdk.IdentityLoginRequest	true	"Provider attributes"
//	@Success		200							{object}	authsdk.TokenResponse			"Access and refresh token"
//	@Failure		400							{object}	authsdk.APIError				"unknown_provider or missing_identity_attribute"
//	@Failure		401							{object}	authsdk.APIError				"unauthorized"
//	@Failure		409							{object}	authsdk.APIError				"account_already_exists"
//	@Router			/v1/identity/{provider}/login [post].
func (h *IdentityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	presented := r.Header.Get(GatewayTokenHeader)
	if h.GatewayToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(h.GatewayToken)) != 1 {
		log.Warn("identity login without a valid gateway token")
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	var req authsdk.IdentityLoginRequest
	if !decodeOrReject(w, r, &req) {
		return
	}

	provider := r.PathValue("provider")
	pair, err := h.Auth.Service.OAuthLogin(r.Context(), provider, req.Attributes, clientMeta(r, req.DeviceInfo))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.Auth.tokenResponse(pair))
}
