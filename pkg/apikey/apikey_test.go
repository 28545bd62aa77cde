package apikey

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	require.True(t, Valid("secret", "secret"))
	require.False(t, Valid("secret", "wrong"))
	require.False(t, Valid("", "anything"))
	require.False(t, Valid("secret", ""))
}

func TestMiddlewareRejectsMissingKey(t *testing.T) {
	handler := Middleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/get_party_cert", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestMiddlewareAllowsValidKey(t *testing.T) {
	var sawAuthorized bool
	handler := Middleware("secret")(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		sawAuthorized = IsAuthorized(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/get_party_cert", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, sawAuthorized)
}
