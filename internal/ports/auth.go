package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/console-auth/internal/domain/auth"
)

// IdentityProvider performs the network-facing credential exchange and MFA enrollment
// primitives. Implementations hold no per-session state and never retry.
type IdentityProvider interface {
	// InitiateAuth submits a username/password credential.
	InitiateAuth(ctx context.Context, username, password string) (domainauth.AuthOutcome, error)

	// RespondToPasswordChallenge completes a forced password reset. The result may chain into MFA.
	RespondToPasswordChallenge(ctx context.Context, username, newPassword, handle string) (domainauth.AuthOutcome, error)

	// RespondToMfaChallenge submits a one-time code; kind selects the SMS or TOTP code field.
	RespondToMfaChallenge(
		ctx context.Context,
		username, code, handle string,
		kind domainauth.ChallengeKind,
	) (domainauth.AuthOutcome, error)

	GetMfaStatus(ctx context.Context, accessToken string) (domainauth.MfaStatus, error)
	BeginTotpEnrollment(ctx context.Context, accessToken string) (domainauth.TotpSetup, error)

	// VerifyTotpEnrollment checks userCode against the pending enrollment. handle may be empty.
	VerifyTotpEnrollment(ctx context.Context, accessToken, userCode, handle string) error

	SetPreferredMfaFactor(ctx context.Context, accessToken, factor string) error
}

// TokenVerifier checks an ID token signature and issuer. It is optional; claims are
// always decoded locally regardless.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) error
}

// ProfileSource fetches the backend's view of the signed-in user.
type ProfileSource interface {
	FetchProfile(ctx context.Context, accessToken string) (domainauth.Profile, error)
	SwitchOrganization(ctx context.Context, accessToken, organizationID string) (domainauth.Profile, error)
}

// ProfileCache stores profiles keyed by subject id. It never stores credentials.
type ProfileCache interface {
	Get(ctx context.Context, subjectID string) (domainauth.Profile, error)
	Set(ctx context.Context, subjectID string, p domainauth.Profile, ttl time.Duration) error
	Delete(ctx context.Context, subjectID string) error
}

// AuditSink persists redacted session events.
type AuditSink interface {
	Record(ctx context.Context, ev domainauth.Event) error
}

// AuthObserver receives session events synchronously after each operation.
// Implementations must be fast and must not block on I/O for long.
type AuthObserver interface {
	Observe(ctx context.Context, ev domainauth.Event)
}

// RoleMapper maps a profile to the coarse tier used by HTTP middleware.
type RoleMapper interface {
	Map(p *domainauth.Profile) domainauth.Role
}
