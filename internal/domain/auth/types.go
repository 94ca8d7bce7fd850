package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Phase is the coarse state of a login session.
type Phase string

const (
	PhaseUnauthenticated           Phase = "unauthenticated"
	PhaseAwaitingPasswordChallenge Phase = "awaiting_password_challenge"
	PhaseAwaitingMfaChallenge      Phase = "awaiting_mfa_challenge"
	PhaseAuthenticated             Phase = "authenticated"
)

// IsAwaiting reports whether the phase parks on a provider challenge.
func (p Phase) IsAwaiting() bool {
	return p == PhaseAwaitingPasswordChallenge || p == PhaseAwaitingMfaChallenge
}

// ChallengeKind names a follow-up step the identity provider demands before issuing tokens.
// Values match the provider's challenge names so they can be passed through unchanged.
type ChallengeKind string

const (
	ChallengeNone             ChallengeKind = ""
	ChallengePasswordRequired ChallengeKind = "NEW_PASSWORD_REQUIRED"
	ChallengeSmsMfa           ChallengeKind = "SMS_MFA"
	ChallengeTotpMfa          ChallengeKind = "SOFTWARE_TOKEN_MFA"
)

// IsMfa reports whether the challenge expects a one-time code.
func (k ChallengeKind) IsMfa() bool {
	return k == ChallengeSmsMfa || k == ChallengeTotpMfa
}

// Supported reports whether the session state machine can park on this challenge.
func (k ChallengeKind) Supported() bool {
	return k == ChallengePasswordRequired || k.IsMfa()
}

// Phase returns the session phase a pending challenge of this kind maps to.
func (k ChallengeKind) Phase() Phase {
	switch k {
	case ChallengePasswordRequired:
		return PhaseAwaitingPasswordChallenge
	case ChallengeSmsMfa, ChallengeTotpMfa:
		return PhaseAwaitingMfaChallenge
	default:
		return PhaseUnauthenticated
	}
}

// MFA factor names as reported by the provider's user settings.
const (
	FactorSms  = "SMS_MFA"
	FactorTotp = "SOFTWARE_TOKEN_MFA"
)

// Tokens is the bundle issued by the identity provider on a successful sign-in.
// Values are credentials: never log or persist them.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// PendingChallenge is the context needed to answer an outstanding challenge.
type PendingChallenge struct {
	Kind     ChallengeKind
	Handle   string // opaque provider session handle
	Username string
}

// Identity is the principal decoded from the token claims.
type Identity struct {
	Username  string `json:"username"`
	SubjectID string `json:"subject_id"`
	Email     string `json:"email,omitempty"`
}

// OrganizationRole is a single role grant scoped to an organization.
type OrganizationRole struct {
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role"`
}

// Profile is the backend's view of the user, supplied after a profile fetch.
type Profile struct {
	OrganizationRoles    []OrganizationRole `json:"organizationRoles"`
	RecentOrganizationID string             `json:"recentOrganizationId,omitempty"`
	FetchedAt            time.Time          `json:"fetchedAt"`
}

// MfaEnrollment tracks the MFA settings and any in-progress TOTP setup.
type MfaEnrollment struct {
	Enabled           bool     `json:"enabled"`
	RegisteredFactors []string `json:"registered_factors"`
	PreferredFactor   string   `json:"preferred_factor,omitempty"`

	// Transient TOTP setup state. SetupSecret is a credential.
	SetupSecret       string `json:"-"`
	SetupHandle       string `json:"-"`
	PreferencePending bool   `json:"preference_pending"`
}

// SetupInProgress reports whether TOTP enrollment was started and not yet completed.
func (m MfaEnrollment) SetupInProgress() bool {
	return m.SetupSecret != "" || m.SetupHandle != ""
}

// HasFactor reports whether factor is registered.
func (m MfaEnrollment) HasFactor(factor string) bool {
	for _, f := range m.RegisteredFactors {
		if f == factor {
			return true
		}
	}
	return false
}

// MfaStatus is the provider's report of a user's MFA settings.
type MfaStatus struct {
	RegisteredFactors []string
	PreferredFactor   string
}

// TotpSetup is returned when TOTP enrollment starts.
type TotpSetup struct {
	Secret string
	Handle string
}

// OutcomeKind tags an AuthOutcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeChallenge
)

// AuthOutcome is the normalized provider response to a credential or challenge submission.
// Exactly one of Tokens or Challenge is meaningful, selected by Kind.
type AuthOutcome struct {
	Kind      OutcomeKind
	Tokens    Tokens
	Challenge ChallengeRequired
}

// ChallengeRequired names the challenge the provider wants answered next.
type ChallengeRequired struct {
	Kind   ChallengeKind
	Handle string
}

// Success builds a token outcome.
func Success(t Tokens) AuthOutcome {
	return AuthOutcome{Kind: OutcomeSuccess, Tokens: t}
}

// Challenge builds a challenge outcome.
func Challenge(kind ChallengeKind, handle string) AuthOutcome {
	return AuthOutcome{Kind: OutcomeChallenge, Challenge: ChallengeRequired{Kind: kind, Handle: handle}}
}
