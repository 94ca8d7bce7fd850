package httpx

import (
	"net/http"

	apperrors "github.com/target/console-auth/internal/errors"
)

type totpVerifyRequest struct {
	Code string `json:"code"`
}

// MfaStatus refreshes and returns the caller's MFA enrollment.
// GET /auth/mfa.
func (h *AuthHandlers) MfaStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	m, err := sess.FetchMfaStatus(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// StartTotp begins TOTP enrollment and returns the shared secret with a provisioning URI.
// POST /auth/mfa/totp.
func (h *AuthHandlers) StartTotp(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	enr, err := h.Svc.StartTotpEnrollment(r.Context(), sess)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, enr)
}

// VerifyTotp verifies the first code from the authenticator app and makes TOTP preferred.
// A 202 means the code was accepted but the preference update must be retried.
// POST /auth/mfa/totp/verify.
func (h *AuthHandlers) VerifyTotp(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	var req totpVerifyRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := sess.VerifyAndEnableTotp(r.Context(), req.Code); err != nil {
		if apperrors.IsPreferencePending(err) {
			WriteJSON(w, http.StatusAccepted, sess.Mfa())
			return
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sess.Mfa())
}

// RetryTotpPreference retries only the preference update after a partial verify.
// POST /auth/mfa/totp/preference.
func (h *AuthHandlers) RetryTotpPreference(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	if err := sess.RetryTotpPreference(r.Context()); err != nil {
		if apperrors.IsPreferencePending(err) {
			WriteJSON(w, http.StatusAccepted, sess.Mfa())
			return
		}
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sess.Mfa())
}
