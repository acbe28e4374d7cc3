package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func callProtected(t *testing.T, apiKey string, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := APIKeyAuth(apiKey)(next)

	req := httptest.NewRequest("GET", "/v1/queue/stats", nil)
	if decorate != nil {
		decorate(req)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuthHeaderKey(t *testing.T) {
	rec := callProtected(t, "secret", func(r *http.Request) {
		r.Header.Set("X-API-Key", "secret")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIKeyAuthBearerFallback(t *testing.T) {
	rec := callProtected(t, "secret", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer secret")
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIKeyAuthMissingKey(t *testing.T) {
	rec := callProtected(t, "secret", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIKeyAuthWrongKey(t *testing.T) {
	rec := callProtected(t, "secret", func(r *http.Request) {
		r.Header.Set("X-API-Key", "not-the-secret")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
