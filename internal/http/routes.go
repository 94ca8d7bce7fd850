package httpx

import (
	"log/slog"
	"net/http"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth         *service.AuthService
	CookieDomain string
	// CSRF enables double-submit cookie protection on state-changing routes.
	CSRF        bool
	ReadyChecks []ReadyCheck
	Logger      *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.ReadyChecks))

	if services.Auth != nil {
		h := &AuthHandlers{Svc: services.Auth, CookieDomain: services.CookieDomain, Logger: logger}
		registerAuthRoutes(mux, h)
	}

	var handler http.Handler = mux
	if services.CSRF {
		handler = CSRFProtection(CSRFConfig{CookieDomain: services.CookieDomain})(handler)
	}
	return Recover(logger)(Logging(logger)(handler))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.HandleFunc("POST /auth/challenge/password", h.CompletePasswordChallenge)
	mux.HandleFunc("POST /auth/challenge/mfa", h.CompleteMfaChallenge)
	mux.HandleFunc("POST /auth/logout", h.Logout)
	mux.HandleFunc("POST /auth/reset", h.Reset)
	mux.HandleFunc("GET /auth/status", h.Status)

	authed := RequireAuth(h.Svc)
	mux.Handle("GET /auth/mfa", authed(http.HandlerFunc(h.MfaStatus)))
	mux.Handle("POST /auth/mfa/totp", authed(http.HandlerFunc(h.StartTotp)))
	mux.Handle("POST /auth/mfa/totp/verify", authed(http.HandlerFunc(h.VerifyTotp)))
	mux.Handle("POST /auth/mfa/totp/preference", authed(http.HandlerFunc(h.RetryTotpPreference)))

	mux.Handle("GET /api/me/permissions", authed(http.HandlerFunc(h.Permissions)))
	mux.Handle("POST /api/me/profile/refresh", authed(http.HandlerFunc(h.RefreshProfile)))
	mux.Handle("POST /api/me/organization", authed(http.HandlerFunc(h.SwitchOrganization)))
	mux.Handle("GET /api/admin/ping", RequireRole(h.Svc, domainauth.RoleSystemAdmin)(http.HandlerFunc(adminPing)))
}
