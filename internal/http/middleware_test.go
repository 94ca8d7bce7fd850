package httpx

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/target/console-auth/internal/domain/auth"
)

func TestHasRequiredRole(t *testing.T) {
	tests := []struct {
		user, required domainauth.Role
		want           bool
	}{
		{domainauth.RoleSystemAdmin, domainauth.RoleAdmin, true},
		{domainauth.RoleAdmin, domainauth.RoleAdmin, true},
		{domainauth.RoleMember, domainauth.RoleAdmin, false},
		{domainauth.RoleGuest, domainauth.RoleMember, false},
		{domainauth.RoleAdmin, domainauth.RoleSystemAdmin, false},
		{"bogus", domainauth.RoleGuest, false},
		{domainauth.RoleAdmin, "bogus", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasRequiredRole(tt.user, tt.required), "%s >= %s", tt.user, tt.required)
	}
}

func TestRecover(t *testing.T) {
	h := Recover(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIsSecureRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, isSecureRequest(req))

	req.Header.Set("X-Forwarded-Proto", "http, https")
	assert.True(t, isSecureRequest(req))
}
