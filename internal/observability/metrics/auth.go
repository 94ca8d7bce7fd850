package metrics

import (
	"context"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/observability/statsd"
)

// Metric names.
const (
	AuthOperation = "auth.operation"
	AuthDuration  = "auth.duration"
	AuthExpired   = "auth.session_expired"
	MfaEnabled    = "auth.mfa_enabled"
)

// AuthMetrics turns session events into StatsD counters and timings.
type AuthMetrics struct {
	Sink statsd.Sink
}

func (m AuthMetrics) Observe(_ context.Context, ev domainauth.Event) {
	if m.Sink == nil {
		return
	}

	tags := map[string]string{
		"op":     string(ev.Op),
		"result": string(ev.Result),
		"phase":  string(ev.Phase),
	}
	if ev.Challenge != domainauth.ChallengeNone {
		tags["challenge"] = string(ev.Challenge)
	}
	if ev.Result == domainauth.ResultFailure {
		tags["error_code"] = ev.ErrorCode
		tags["reason"] = ev.Reason
	}

	m.Sink.Count(AuthOperation, 1, tags)
	if ev.Duration > 0 {
		m.Sink.Timing(AuthDuration, ev.Duration, CloneTags(tags))
	}

	switch {
	case ev.Result == domainauth.ResultExpired:
		m.Sink.Count(AuthExpired, 1, map[string]string{"reason": ev.Reason})
	case ev.Result == domainauth.ResultSuccess &&
		(ev.Op == domainauth.OpVerifyTotp || ev.Op == domainauth.OpSetTotpPreference):
		m.Sink.Count(MfaEnabled, 1, map[string]string{"factor": domainauth.FactorTotp})
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
