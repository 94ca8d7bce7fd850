package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfHandler() http.Handler {
	return CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func csrfCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCSRFCookieName {
			return c
		}
	}
	return nil
}

func TestCSRFProtection_GetRequestsAllowed(t *testing.T) {
	rec := httptest.NewRecorder()

	csrfHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	c := csrfCookie(t, rec)
	require.NotNil(t, c, "CSRF cookie not set")
	assert.NotEmpty(t, c.Value)
	assert.False(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestCSRFProtection_PostWithoutTokenFails(t *testing.T) {
	rec := httptest.NewRecorder()

	csrfHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/test", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFProtection_HeaderMustMatchCookie(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"matching", "tok-123", http.StatusOK},
		{"mismatched", "tok-456", http.StatusForbidden},
		{"missing", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", nil)
			req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: "tok-123"})
			if tt.header != "" {
				req.Header.Set(DefaultCSRFHeaderName, tt.header)
			}
			rec := httptest.NewRecorder()

			csrfHandler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Nil(t, csrfCookie(t, rec), "existing token is not rotated")
		})
	}
}

func TestRequiresCSRFValidation(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		assert.False(t, requiresCSRFValidation(m), m)
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		assert.True(t, requiresCSRFValidation(m), m)
	}
}
