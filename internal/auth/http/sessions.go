package http

import (
	"net/http"

	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/pkg/authsdk"
	"github.com/aussiebroadwan/autopay/pkg/httpx"
)

// SessionsHandler reports on the caller's refresh sessions.
type SessionsHandler struct {
	Service *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		Count active sessions
//	@Description	Number of unrevoked, unexpired refresh tokens of the caller.
//	@Tags			Sessions
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionCountResponse	"Active sessions"
//	@Failure		401	{object}	httpx.ErrorBody					"unauthorized"
//	@Router			/v1/sessions/count [get].
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	accountID, ok := httpx.AccountID(r.Context())
	if !ok {
		authsdk.ErrUnauthorized.WriteError(w)
		return
	}

	n, err := h.Service.ActiveSessions(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.SessionCountResponse{Active: n})
}
