package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/autopay/pkg/idx"
)

// HTTPMiddleware logs requests and attaches a contextual logger and the
// request metadata to the request context. clientIP resolves the caller
// address; nil falls back to RemoteAddr.
func HTTPMiddleware(base *slog.Logger, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	if clientIP == nil {
		clientIP = func(r *http.Request) string { return r.RemoteAddr }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" || len(reqID) > 64 {
				reqID = idx.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)

			ip := clientIP(r)
			logger := base.With(
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", ip,
			)

			ctx := WithContext(r.Context(), logger)
			ctx = WithRequestMeta(ctx, RequestMeta{
				IP:        ip,
				UserAgent: r.UserAgent(),
				RequestID: reqID,
			})
			r = r.WithContext(ctx)

			next.ServeHTTP(rw, r)

			logger.Info("http_request",
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter

	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
