package httpx

import (
	"net/http"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
)

type meResponse struct {
	Identity    *domainauth.Identity   `json:"identity,omitempty"`
	Role        domainauth.Role        `json:"role"`
	Permissions domainauth.Permissions `json:"permissions"`
}

type switchOrganizationRequest struct {
	OrganizationID string `json:"organizationId"`
}

// Permissions returns the derived permissions for the caller's current organization.
// GET /api/me/permissions.
func (h *AuthHandlers) Permissions(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	resp := meResponse{Role: h.Svc.Role(sess), Permissions: sess.Permissions()}
	if id, ok := sess.Identity(); ok {
		resp.Identity = &id
	}
	WriteJSON(w, http.StatusOK, resp)
}

// RefreshProfile drops the cached profile and fetches it again.
// POST /api/me/profile/refresh.
func (h *AuthHandlers) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	p, err := h.Svc.RefreshProfile(r.Context(), sess)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// SwitchOrganization makes another organization current for the caller.
// POST /api/me/organization.
func (h *AuthHandlers) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteAppError(w, apperrors.SessionMissing("authentication required"))
		return
	}
	var req switchOrganizationRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	p, err := h.Svc.SwitchOrganization(r.Context(), sess, req.OrganizationID)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, meResponse{Role: h.Svc.Role(sess), Permissions: p.Permissions()})
}

// adminPing is a trivial systemadmin-only endpoint for checking role gating.
// GET /api/admin/ping.
func adminPing(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
