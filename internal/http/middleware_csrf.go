package httpx

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultCSRFCookieName is the default name for the CSRF cookie.
	DefaultCSRFCookieName = "csrf_token"
	// DefaultCSRFHeaderName is the default name for the CSRF header (canonical form).
	DefaultCSRFHeaderName = "X-Csrf-Token"
	// DefaultCSRFTokenLength is the default length of the CSRF token in bytes.
	DefaultCSRFTokenLength = 32

	csrfCookieMaxAge = 12 * time.Hour
)

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	CookieName   string
	HeaderName   string
	CookieDomain string
	TokenLength  int
}

// CSRFProtection returns a middleware that protects against CSRF attacks using the double-submit cookie pattern.
// The client echoes the csrf_token cookie in the X-Csrf-Token header on state-changing requests.
// GET, HEAD, OPTIONS, and TRACE requests are exempt from CSRF validation.
func CSRFProtection(cfg CSRFConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCSRFCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultCSRFHeaderName
	}
	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultCSRFTokenLength
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				token = c.Value
			}

			if token == "" {
				var err error
				token, err = generateCSRFToken(cfg.TokenLength)
				if err != nil {
					http.Error(w, "unable to generate CSRF token", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					Domain:   cfg.CookieDomain,
					HttpOnly: false, // the client must read it to echo it back
					Secure:   isSecureRequest(r),
					SameSite: http.SameSiteStrictMode,
					MaxAge:   int(csrfCookieMaxAge / time.Second),
				})
				// A freshly minted token cannot have been echoed yet.
				if requiresCSRFValidation(r.Method) {
					writeCSRFFailure(w)
					return
				}
			}

			if requiresCSRFValidation(r.Method) && !validCSRFHeader(r.Header.Get(cfg.HeaderName), token) {
				writeCSRFFailure(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeCSRFFailure(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusForbidden,
		ErrCode: "csrf_failed",
		Err:     fmt.Errorf("CSRF token validation failed"),
	})
}

// requiresCSRFValidation returns true if the HTTP method requires CSRF validation.
// Safe methods (GET, HEAD, OPTIONS, TRACE) are exempt.
func requiresCSRFValidation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// generateCSRFToken generates a cryptographically secure random CSRF token.
// Returns an error if random generation fails - we fail closed rather than
// falling back to a predictable token.
func generateCSRFToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("csrf token generation failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func validCSRFHeader(header, cookieToken string) bool {
	if header == "" || cookieToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(header), []byte(cookieToken)) == 1
}
