package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/autopay/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		httpx.Chain(boom, httpx.Recover()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "server_error")
}

func TestRecover_PassThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.Chain(okHandler(), httpx.Recover()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
