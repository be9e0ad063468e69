package httpx

import (
	"net/http"
	"slices"
	"strings"
)

// RequireAnyAuthority admits callers holding at least one of the authorities.
func RequireAnyAuthority(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, have := range authoritiesFromCtx(r.Context()) {
				if slices.Contains(required, have) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeInsufficientAuthority(w, required...)
		})
	}
}

// RequireAllAuthorities admits callers holding every listed authority.
func RequireAllAuthorities(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := authoritiesFromCtx(r.Context())
			for _, want := range required {
				if !slices.Contains(have, want) {
					writeInsufficientAuthority(w, required...)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeInsufficientAuthority(w http.ResponseWriter, required ...string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
	WriteJSON(w, http.StatusForbidden, ErrorBody{Error: "forbidden", Message: "insufficient authority"})
}
