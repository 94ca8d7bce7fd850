package auth

import "time"

// Operation names a session transition or MFA step.
type Operation string

const (
	OpBeginLogin                Operation = "begin_login"
	OpCompletePasswordChallenge Operation = "complete_password_challenge"
	OpCompleteMfaChallenge      Operation = "complete_mfa_challenge"
	OpLogout                    Operation = "logout"
	OpReset                     Operation = "reset"
	OpCheckStatus               Operation = "check_status"
	OpFetchMfaStatus            Operation = "fetch_mfa_status"
	OpStartTotpEnrollment       Operation = "start_totp_enrollment"
	OpVerifyTotp                Operation = "verify_totp"
	OpSetTotpPreference         Operation = "set_totp_preference"
	OpLoadProfile               Operation = "load_profile"
	OpSwitchOrganization        Operation = "switch_organization"
)

// Result summarizes how an operation ended.
type Result string

const (
	ResultSuccess           Result = "success"
	ResultChallenge         Result = "challenge"
	ResultFailure           Result = "failure"
	ResultPreferencePending Result = "preference_pending"
	ResultExpired           Result = "expired"
)

// Event describes one session operation for observers (logs, metrics, audit).
// It never carries token, secret, or hash material.
type Event struct {
	At        time.Time
	SessionID string
	Op        Operation
	Result    Result
	Phase     Phase
	Challenge ChallengeKind
	Username  string
	SubjectID string
	ErrorCode string
	Reason    string
	Duration  time.Duration
}
