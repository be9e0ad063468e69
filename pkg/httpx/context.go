package httpx

import (
	"context"

	"github.com/aussiebroadwan/autopay/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyAccountID   ctxKey = "account_id"
	CtxKeyAuthorities ctxKey = "authorities"
	CtxKeyClaims      ctxKey = "claims"
)

// AccountID returns the authenticated account, if any.
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(CtxKeyAccountID).(string)
	return id, ok && id != ""
}

// ClaimsFrom returns the verified access token claims.
func ClaimsFrom(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

func authoritiesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyAuthorities).([]string); ok {
		return v
	}
	return nil
}
