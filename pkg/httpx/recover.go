package httpx

import (
	"net/http"
	"runtime/debug"

	"github.com/aussiebroadwan/autopay/pkg/slogx"
	"github.com/getsentry/sentry-go"
)

// Recover turns a panic in a handler into a 500 and reports it to Sentry.
// Sentry calls are no-ops until sentry.Init has run.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				stack := string(debug.Stack())
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetExtra("panic", rec)
					scope.SetExtra("stack", stack)
					scope.SetTag("path", r.URL.Path)
					sentry.CaptureMessage("panic in request")
				})

				slogx.FromContext(r.Context()).Error("panic recovered",
					"panic", rec,
					"stack", stack,
				)

				WriteJSON(w, http.StatusInternalServerError, ErrorBody{
					Error:   "server_error",
					Message: "internal server error",
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
