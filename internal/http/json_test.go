package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/target/console-auth/internal/errors"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantReason string
	}{
		{"credentials hidden", apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("x")), 401, "auth_failed", ""},
		{"user not confirmed hidden", apperrors.AuthFailed(apperrors.ReasonUserNotConfirmed, nil), 401, "auth_failed", ""},
		{"code mismatch shown", apperrors.AuthFailed(apperrors.ReasonCodeMismatch, nil), 401, "auth_failed", "code_mismatch"},
		{"throttled", apperrors.AuthFailed(apperrors.ReasonThrottled, nil), 429, "auth_failed", "throttled"},
		{"provider down", apperrors.AuthFailed(apperrors.ReasonProviderUnavailable, nil), 503, "auth_failed", "provider_unavailable"},
		{"mismatch", apperrors.ChallengeMismatchf("want %s", "mfa"), 400, "challenge_mismatch", ""},
		{"validation", apperrors.ValidationField("code", "required"), 400, "validation", ""},
		{"invalid state", apperrors.InvalidStatef("busy"), 409, "invalid_state", ""},
		{"session missing", apperrors.SessionMissing("gone"), 401, "session_missing", ""},
		{"token decode", apperrors.TokenDecode("bad", nil), 401, "token_decode", ""},
		{"pending", apperrors.PreferencePending(nil), 202, "preference_pending", ""},
		{"not found", apperrors.NotFound("nope"), 404, "not_found", ""},
		{"configuration", apperrors.Configuration("missing client id"), 500, "configuration", ""},
		{"wrapped internal", apperrors.Wrap(errors.New("boom"), apperrors.ErrCodeInternal, "x"), 500, "internal", ""},
		{"plain error", context.DeadlineExceeded, 500, "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorResponse(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, tt.wantReason, body.Reason)
		})
	}
}

func TestErrorResponse_RedactsMessages(t *testing.T) {
	_, body := errorResponse(apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("user does not exist")))
	assert.Equal(t, "sign-in failed", body.Message)

	_, body = errorResponse(apperrors.Configuration("COGNITO_CLIENT_SECRET is not set"))
	assert.Equal(t, "internal error", body.Message)

	_, body = errorResponse(apperrors.ValidationField("code", "code is required"))
	assert.Equal(t, "code", body.Field)
}

func TestWriteAppError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteAppError(rec, apperrors.InvalidStatef("nope"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"error":"invalid_state","message":"nope"}`, rec.Body.String())
}
