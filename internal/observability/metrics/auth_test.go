package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/observability/statsd"
)

func TestAuthMetrics_Observe(t *testing.T) {
	ctx := context.Background()

	t.Run("challenge with timing", func(t *testing.T) {
		rec := &statsd.Recorder{}
		AuthMetrics{Sink: rec}.Observe(ctx, domainauth.Event{
			Op:        domainauth.OpBeginLogin,
			Result:    domainauth.ResultChallenge,
			Phase:     domainauth.PhaseAwaitingMfaChallenge,
			Challenge: domainauth.ChallengeTotpMfa,
			Duration:  12 * time.Millisecond,
		})
		assert.Equal(t, []string{
			"auth.operation:1|c|#challenge:SOFTWARE_TOKEN_MFA,op:begin_login,phase:awaiting_mfa_challenge,result:challenge",
			"auth.duration:12|ms|#challenge:SOFTWARE_TOKEN_MFA,op:begin_login,phase:awaiting_mfa_challenge,result:challenge",
		}, rec.Lines())
	})

	t.Run("failure carries reason", func(t *testing.T) {
		rec := &statsd.Recorder{}
		AuthMetrics{Sink: rec}.Observe(ctx, domainauth.Event{
			Op:        domainauth.OpCompleteMfaChallenge,
			Result:    domainauth.ResultFailure,
			Phase:     domainauth.PhaseAwaitingMfaChallenge,
			ErrorCode: "auth_failed",
			Reason:    "code_mismatch",
		})
		lines := rec.Lines()
		assert.Len(t, lines, 1)
		assert.Contains(t, lines[0], "error_code:auth_failed")
		assert.Contains(t, lines[0], "reason:code_mismatch")
	})

	t.Run("expiry and mfa counters", func(t *testing.T) {
		rec := &statsd.Recorder{}
		m := AuthMetrics{Sink: rec}
		m.Observe(ctx, domainauth.Event{Op: domainauth.OpCheckStatus, Result: domainauth.ResultExpired, Reason: "tokens_expired"})
		m.Observe(ctx, domainauth.Event{Op: domainauth.OpVerifyTotp, Result: domainauth.ResultSuccess})

		lines := rec.Lines()
		assert.Contains(t, lines, "auth.session_expired:1|c|#reason:tokens_expired")
		assert.Contains(t, lines, "auth.mfa_enabled:1|c|#factor:SOFTWARE_TOKEN_MFA")
	})

	t.Run("nil sink", func(t *testing.T) {
		AuthMetrics{}.Observe(ctx, domainauth.Event{})
	})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))
	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
