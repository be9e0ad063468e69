package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/autopay/internal/auth/service"
	"github.com/aussiebroadwan/autopay/pkg/authsdk"
	"github.com/aussiebroadwan/autopay/pkg/httpx"
)

const defaultAuditPage = 100

// AuditHandler exposes the security audit trail to administrators.
type AuditHandler struct {
	Service *service.AuthService
}

// ServeHTTP godoc
//
//	@Summary		List audit events
//	@Description	Most recent security events first, optionally for one account.
//	@Tags			Admin
//	@Security		BearerAuth
//	@Produce		json
//	@Param			accountId	query		string					false	"Filter by account"
//	@Param			limit		query		int						false	"Page size"	default(100)
//	@Success		200			{object}	authsdk.AuditEventList	"Audit events"
//	@Failure		400			{object}	authsdk.APIError		"invalid_request"
//	@Failure		401			{object}	httpx.ErrorBody			"unauthorized"
//	@Failure		403			{object}	httpx.ErrorBody			"insufficient authority"
//	@Router			/v1/admin/audit-events [get].
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultAuditPage
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			authsdk.ErrInvalidRequest.With("limit must be a positive integer").WriteError(w)
			return
		}
		limit = n
	}

	events, err := h.Service.ListAuditEvents(r.Context(), q.Get("accountId"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.AuditEventList{Events: make([]authsdk.AuditEvent, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, authsdk.AuditEvent{
			ID:        e.ID,
			Type:      string(e.Type),
			AccountID: e.AccountID,
			IPAddress: e.IPAddress,
			UserAgent: e.UserAgent,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
