package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/service"
)

// AuthService is the subset of *service.AuthService the handlers need.
type AuthService interface {
	Session(id string) (*service.Session, error)
	SessionOrNew(id string) (*service.Session, bool)
	Destroy(id string)
	IdleTTL() time.Duration
	Login(ctx context.Context, sess *service.Session, username, password string) (service.TransitionResult, error)
	CompletePasswordChallenge(
		ctx context.Context,
		sess *service.Session,
		newPassword string,
		opts ...service.CompletionOption,
	) (service.TransitionResult, error)
	CompleteMfaChallenge(
		ctx context.Context,
		sess *service.Session,
		code string,
		opts ...service.CompletionOption,
	) (service.TransitionResult, error)
	Logout(ctx context.Context, sess *service.Session) error
	StartTotpEnrollment(ctx context.Context, sess *service.Session) (service.TotpEnrollment, error)
	SwitchOrganization(ctx context.Context, sess *service.Session, orgID string) (domainauth.Profile, error)
	RefreshProfile(ctx context.Context, sess *service.Session) (domainauth.Profile, error)
	Role(sess *service.Session) domainauth.Role
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthService
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type passwordChallengeRequest struct {
	NewPassword string `json:"newPassword"`
	Username    string `json:"username,omitempty"`
}

type mfaChallengeRequest struct {
	Code     string `json:"code"`
	Username string `json:"username,omitempty"`
}

type transitionResponse struct {
	Phase     domainauth.Phase         `json:"phase"`
	Challenge domainauth.ChallengeKind `json:"challenge,omitempty"`
}

func toTransitionResponse(res service.TransitionResult) transitionResponse {
	return transitionResponse{Phase: res.Phase, Challenge: res.Challenge}
}

// Login submits credentials on the caller's session, creating one if needed.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	id, _ := sessionIDFromRequest(r)
	sess, created := h.Svc.SessionOrNew(id)

	res, err := h.Svc.Login(r.Context(), sess, req.Username, req.Password)
	if err != nil {
		if created {
			h.Svc.Destroy(sess.ID())
		}
		WriteAppError(w, err)
		return
	}

	h.setSessionCookie(w, r, sess.ID())
	WriteJSON(w, http.StatusOK, toTransitionResponse(res))
}

// CompletePasswordChallenge answers a NEW_PASSWORD_REQUIRED challenge.
// POST /auth/challenge/password.
func (h *AuthHandlers) CompletePasswordChallenge(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req passwordChallengeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.CompletePasswordChallenge(r.Context(), sess, req.NewPassword, completionOptions(req.Username)...)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.setSessionCookie(w, r, sess.ID())
	WriteJSON(w, http.StatusOK, toTransitionResponse(res))
}

// CompleteMfaChallenge answers an SMS or TOTP challenge.
// POST /auth/challenge/mfa.
func (h *AuthHandlers) CompleteMfaChallenge(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	var req mfaChallengeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.CompleteMfaChallenge(r.Context(), sess, req.Code, completionOptions(req.Username)...)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	h.setSessionCookie(w, r, sess.ID())
	WriteJSON(w, http.StatusOK, toTransitionResponse(res))
}

func completionOptions(username string) []service.CompletionOption {
	if username == "" {
		return nil
	}
	return []service.CompletionOption{service.ForUsername(username)}
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := sessionIDFromRequest(r); ok {
		if sess, err := h.Svc.Session(id); err == nil {
			if logoutErr := h.Svc.Logout(r.Context(), sess); logoutErr != nil {
				h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
			}
		}
	}

	clearCookie(w, r, SessionCookieName, h.CookieDomain)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Reset abandons whatever the session was doing and returns it to unauthenticated.
// POST /auth/reset.
func (h *AuthHandlers) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if err := sess.Reset(r.Context()); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, transitionResponse{Phase: sess.Phase()})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	unauthenticated := service.Snapshot{Phase: domainauth.PhaseUnauthenticated}

	id, ok := sessionIDFromRequest(r)
	if !ok {
		WriteJSON(w, http.StatusOK, unauthenticated)
		return
	}
	sess, err := h.Svc.Session(id)
	if err != nil {
		// Session is unknown or expired, clear the cookie
		clearCookie(w, r, SessionCookieName, h.CookieDomain)
		WriteJSON(w, http.StatusOK, unauthenticated)
		return
	}

	sess.CheckStatus(r.Context())
	WriteJSON(w, http.StatusOK, sess.Snapshot())
}

// requireSession resolves the cookie's session or writes a 401.
func (h *AuthHandlers) requireSession(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	id, ok := sessionIDFromRequest(r)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "session_missing",
			Err:     errors.New("no session"),
		})
		return nil, false
	}
	sess, err := h.Svc.Session(id)
	if err != nil {
		clearCookie(w, r, SessionCookieName, h.CookieDomain)
		WriteAppError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	setCookie(w, r, cookieParams{
		Name:   SessionCookieName,
		Value:  id,
		Domain: h.CookieDomain,
		MaxAge: h.Svc.IdleTTL(),
	})
}
