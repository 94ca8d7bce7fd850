package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
	"github.com/target/console-auth/internal/tokenclaims"
)

// SessionOptions groups dependencies for a Session.
type SessionOptions struct {
	ID       string
	Provider ports.IdentityProvider
	// Verifier optionally checks ID token signatures before a session is committed.
	Verifier ports.TokenVerifier
	Observer ports.AuthObserver
	Now      func() time.Time
}

// Session is the login state machine for one principal.
//
// Transitions are serialized per session: a transition checks its guard and marks the
// session busy under mu, performs the provider call without holding mu, then commits under
// mu. A second transition arriving while one is in flight fails with invalid_state. Reads
// only take mu and never wait on the network.
type Session struct {
	id       atomic.Value // string; replaced when the registry rotates the session id
	provider ports.IdentityProvider
	verifier ports.TokenVerifier
	observer ports.AuthObserver
	now      func() time.Time

	mu         sync.Mutex
	busy       bool
	phase      domainauth.Phase
	tokens     *domainauth.Tokens
	pending    *domainauth.PendingChallenge
	identity   *domainauth.Identity
	profile    *domainauth.Profile
	mfa        domainauth.MfaEnrollment
	lastActive time.Time
}

// NewSession creates an Unauthenticated session.
func NewSession(opts SessionOptions) *Session {
	s := &Session{
		provider: opts.Provider,
		verifier: opts.Verifier,
		observer: opts.Observer,
		now:      opts.Now,
		phase:    domainauth.PhaseUnauthenticated,
	}
	s.id.Store(opts.ID)
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.lastActive = s.now()
	return s
}

// TransitionResult reports where a login transition left the session.
type TransitionResult struct {
	Phase     domainauth.Phase
	Challenge domainauth.ChallengeKind
}

type completionConfig struct {
	username string
}

// CompletionOption adjusts a challenge completion call.
type CompletionOption func(*completionConfig)

// ForUsername requires the pending challenge to belong to username.
func ForUsername(username string) CompletionOption {
	return func(c *completionConfig) { c.username = username }
}

var errTransitionInProgress = apperrors.InvalidStatef("transition already in progress")

// run executes a transition. guard and apply run with mu held; call runs without it.
// busy is cleared on every path, including a panic inside call.
func (s *Session) run(guard, call, apply func() error) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return errTransitionInProgress
	}
	if err := guard(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.busy = true
	s.mu.Unlock()

	settled := false
	defer func() {
		if !settled {
			s.mu.Lock()
			s.busy = false
			s.mu.Unlock()
		}
	}()

	var callErr error
	if call != nil {
		callErr = call()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	settled = true
	s.busy = false
	s.lastActive = s.now()
	if callErr != nil {
		return callErr
	}
	return apply()
}

// BeginLogin submits a credential. It is valid from Unauthenticated and from either
// Awaiting phase, where it replaces the pending challenge.
func (s *Session) BeginLogin(ctx context.Context, username, password string) (TransitionResult, error) {
	start := s.now()
	username = strings.TrimSpace(username)
	var res TransitionResult
	err := func() error {
		if username == "" || password == "" {
			return apperrors.Validation("username and password are required")
		}
		var out domainauth.AuthOutcome
		var id domainauth.Identity
		return s.run(
			func() error {
				if s.phase == domainauth.PhaseAuthenticated {
					return apperrors.InvalidStatef("already authenticated; log out first")
				}
				return nil
			},
			func() error {
				var err error
				out, err = s.provider.InitiateAuth(ctx, username, password)
				if err != nil {
					return err
				}
				id, err = s.resolveIdentity(ctx, out)
				return err
			},
			func() error {
				res = s.applyOutcomeLocked(username, out, id)
				return nil
			},
		)
	}()
	s.emit(ctx, domainauth.OpBeginLogin, start, username, err)
	return res, err
}

// CompletePasswordChallenge answers NEW_PASSWORD_REQUIRED. The provider may chain into MFA.
func (s *Session) CompletePasswordChallenge(
	ctx context.Context,
	newPassword string,
	opts ...CompletionOption,
) (TransitionResult, error) {
	start := s.now()
	var res TransitionResult
	var pending domainauth.PendingChallenge
	err := func() error {
		if newPassword == "" {
			return apperrors.ValidationField("newPassword", "new password is required")
		}
		var out domainauth.AuthOutcome
		var id domainauth.Identity
		return s.run(
			func() error {
				p, err := s.pendingForLocked(opts, func(k domainauth.ChallengeKind) bool {
					return k == domainauth.ChallengePasswordRequired
				})
				pending = p
				return err
			},
			func() error {
				var err error
				out, err = s.provider.RespondToPasswordChallenge(ctx, pending.Username, newPassword, pending.Handle)
				if err != nil {
					return err
				}
				id, err = s.resolveIdentity(ctx, out)
				return err
			},
			func() error {
				res = s.applyOutcomeLocked(pending.Username, out, id)
				return nil
			},
		)
	}()
	s.emit(ctx, domainauth.OpCompletePasswordChallenge, start, pending.Username, err)
	return res, err
}

// CompleteMfaChallenge submits a one-time code for the pending SMS or TOTP challenge.
func (s *Session) CompleteMfaChallenge(
	ctx context.Context,
	code string,
	opts ...CompletionOption,
) (TransitionResult, error) {
	start := s.now()
	var res TransitionResult
	var pending domainauth.PendingChallenge
	err := func() error {
		code = strings.TrimSpace(code)
		if code == "" {
			return apperrors.ValidationField("code", "code is required")
		}
		var out domainauth.AuthOutcome
		var id domainauth.Identity
		return s.run(
			func() error {
				p, err := s.pendingForLocked(opts, domainauth.ChallengeKind.IsMfa)
				pending = p
				return err
			},
			func() error {
				var err error
				out, err = s.provider.RespondToMfaChallenge(ctx, pending.Username, code, pending.Handle, pending.Kind)
				if err != nil {
					return err
				}
				id, err = s.resolveIdentity(ctx, out)
				return err
			},
			func() error {
				res = s.applyOutcomeLocked(pending.Username, out, id)
				return nil
			},
		)
	}()
	s.emit(ctx, domainauth.OpCompleteMfaChallenge, start, pending.Username, err)
	return res, err
}

// pendingForLocked checks that a challenge is pending, that its kind is accepted by want,
// and that it belongs to the requested username if one was given.
func (s *Session) pendingForLocked(
	opts []CompletionOption,
	want func(domainauth.ChallengeKind) bool,
) (domainauth.PendingChallenge, error) {
	if s.pending == nil {
		return domainauth.PendingChallenge{}, apperrors.InvalidStatef("no challenge is pending (phase %s)", s.phase)
	}
	p := *s.pending
	if !want(p.Kind) {
		return p, apperrors.ChallengeMismatchf("pending challenge is %s", p.Kind)
	}
	var cfg completionConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.username != "" && cfg.username != p.Username {
		return p, apperrors.ChallengeMismatchf("pending challenge belongs to a different user")
	}
	return p, nil
}

// resolveIdentity decodes (and optionally verifies) tokens from a success outcome.
// It runs outside the lock because verification may fetch signing keys.
func (s *Session) resolveIdentity(ctx context.Context, out domainauth.AuthOutcome) (domainauth.Identity, error) {
	switch out.Kind {
	case domainauth.OutcomeChallenge:
		if !out.Challenge.Kind.Supported() {
			return domainauth.Identity{}, apperrors.AuthFailed(
				apperrors.ReasonUnsupportedChallenge,
				fmt.Errorf("challenge %s is not supported", out.Challenge.Kind),
			)
		}
		return domainauth.Identity{}, nil
	case domainauth.OutcomeSuccess:
		id, err := tokenclaims.DecodeIdentity(out.Tokens)
		if err != nil {
			return domainauth.Identity{}, err
		}
		if s.verifier != nil {
			if err := s.verifier.VerifyIDToken(ctx, out.Tokens.IDToken); err != nil {
				return domainauth.Identity{}, err
			}
		}
		return id, nil
	default:
		return domainauth.Identity{}, apperrors.Internal("provider returned an empty outcome")
	}
}

// applyOutcomeLocked commits a provider outcome. tokens and pending are swapped together.
func (s *Session) applyOutcomeLocked(
	username string,
	out domainauth.AuthOutcome,
	id domainauth.Identity,
) TransitionResult {
	s.profile = nil
	s.mfa = domainauth.MfaEnrollment{}

	if out.Kind == domainauth.OutcomeSuccess {
		tokens := out.Tokens
		s.tokens = &tokens
		s.identity = &id
		s.pending = nil
		s.phase = domainauth.PhaseAuthenticated
		return TransitionResult{Phase: s.phase}
	}

	s.tokens = nil
	s.identity = nil
	s.pending = &domainauth.PendingChallenge{
		Kind:     out.Challenge.Kind,
		Handle:   out.Challenge.Handle,
		Username: username,
	}
	s.phase = out.Challenge.Kind.Phase()
	return TransitionResult{Phase: s.phase, Challenge: out.Challenge.Kind}
}

func (s *Session) clearLocked() {
	s.phase = domainauth.PhaseUnauthenticated
	s.tokens = nil
	s.pending = nil
	s.identity = nil
	s.profile = nil
	s.mfa = domainauth.MfaEnrollment{}
}

// Logout clears an authenticated session.
func (s *Session) Logout(ctx context.Context) error {
	start := s.now()
	username := s.username()
	err := s.run(
		func() error {
			if s.phase != domainauth.PhaseAuthenticated {
				return apperrors.InvalidStatef("cannot log out from phase %s", s.phase)
			}
			return nil
		},
		nil,
		func() error {
			s.clearLocked()
			return nil
		},
	)
	s.emit(ctx, domainauth.OpLogout, start, username, err)
	return err
}

// Reset discards any pending challenge or tokens and returns to Unauthenticated.
// An abandoned challenge simply expires provider-side.
func (s *Session) Reset(ctx context.Context) error {
	start := s.now()
	username := s.username()
	err := s.run(
		func() error { return nil },
		nil,
		func() error {
			s.clearLocked()
			return nil
		},
	)
	s.emit(ctx, domainauth.OpReset, start, username, err)
	return err
}

// CheckStatus resets an Authenticated session whose tokens are missing, malformed,
// or expired, and otherwise changes nothing. While a transition is in flight it
// reports the pre-transition phase without waiting.
func (s *Session) CheckStatus(ctx context.Context) domainauth.Phase {
	s.mu.Lock()
	if s.busy || s.phase != domainauth.PhaseAuthenticated {
		phase := s.phase
		s.mu.Unlock()
		return phase
	}
	reason := s.unusableTokensLocked()
	var username string
	if reason != "" {
		if s.identity != nil {
			username = s.identity.Username
		}
		s.clearLocked()
	}
	phase := s.phase
	s.mu.Unlock()

	if reason != "" {
		s.observer.Observe(ctx, domainauth.Event{
			At:        s.now(),
			SessionID: s.ID(),
			Op:        domainauth.OpCheckStatus,
			Result:    domainauth.ResultExpired,
			Phase:     phase,
			Username:  username,
			Reason:    reason,
		})
	}
	return phase
}

func (s *Session) unusableTokensLocked() string {
	if s.tokens == nil || s.tokens.IDToken == "" {
		return "tokens_missing"
	}
	now := s.now()
	for _, tok := range []string{s.tokens.IDToken, s.tokens.AccessToken} {
		if tok == "" {
			continue
		}
		exp, ok, err := tokenclaims.ExpiresAt(tok)
		if err != nil {
			return "tokens_malformed"
		}
		if ok && !now.Before(exp) {
			return "tokens_expired"
		}
	}
	return ""
}

// FetchMfaStatus refreshes the MFA settings from the provider.
func (s *Session) FetchMfaStatus(ctx context.Context) (domainauth.MfaEnrollment, error) {
	start := s.now()
	var access string
	var status domainauth.MfaStatus
	var result domainauth.MfaEnrollment
	err := s.run(
		func() (err error) {
			access, err = s.accessTokenLocked()
			return err
		},
		func() (err error) {
			status, err = s.provider.GetMfaStatus(ctx, access)
			return err
		},
		func() error {
			s.mfa.RegisteredFactors = append([]string(nil), status.RegisteredFactors...)
			s.mfa.PreferredFactor = status.PreferredFactor
			s.mfa.Enabled = len(status.RegisteredFactors) > 0
			result = copyMfa(s.mfa)
			return nil
		},
	)
	s.emit(ctx, domainauth.OpFetchMfaStatus, start, s.username(), err)
	return result, err
}

// StartTotpEnrollment associates a new software token and stores its setup secret.
func (s *Session) StartTotpEnrollment(ctx context.Context) (domainauth.TotpSetup, error) {
	start := s.now()
	var access string
	var setup domainauth.TotpSetup
	err := s.run(
		func() (err error) {
			access, err = s.accessTokenLocked()
			return err
		},
		func() (err error) {
			setup, err = s.provider.BeginTotpEnrollment(ctx, access)
			return err
		},
		func() error {
			s.mfa.SetupSecret = setup.Secret
			s.mfa.SetupHandle = setup.Handle
			s.mfa.PreferencePending = false
			return nil
		},
	)
	s.emit(ctx, domainauth.OpStartTotpEnrollment, start, s.username(), err)
	if err != nil {
		return domainauth.TotpSetup{}, err
	}
	return setup, nil
}

// VerifyAndEnableTotp verifies code against the pending enrollment and then makes TOTP the
// preferred factor. Local state flips to enabled only when both steps succeed. If the code
// verifies but the preference step fails, a preference_pending error is returned and
// RetryTotpPreference can finish the job.
func (s *Session) VerifyAndEnableTotp(ctx context.Context, code string) error {
	start := s.now()
	code = strings.TrimSpace(code)
	if code == "" {
		err := apperrors.ValidationField("code", "code is required")
		s.emit(ctx, domainauth.OpVerifyTotp, start, s.username(), err)
		return err
	}

	var access, handle string
	var prefErr error
	err := s.run(
		func() error {
			var err error
			access, err = s.accessTokenLocked()
			if err != nil {
				return err
			}
			if !s.mfa.SetupInProgress() {
				return apperrors.InvalidStatef("totp enrollment has not been started")
			}
			handle = s.mfa.SetupHandle
			return nil
		},
		func() error {
			if err := s.provider.VerifyTotpEnrollment(ctx, access, code, handle); err != nil {
				return err
			}
			prefErr = s.provider.SetPreferredMfaFactor(ctx, access, domainauth.FactorTotp)
			return nil
		},
		func() error {
			if prefErr != nil {
				s.mfa.PreferencePending = true
				return apperrors.PreferencePending(prefErr)
			}
			s.enableTotpLocked()
			return nil
		},
	)
	s.emit(ctx, domainauth.OpVerifyTotp, start, s.username(), err)
	return err
}

// RetryTotpPreference repeats only the preference step after a preference_pending outcome.
func (s *Session) RetryTotpPreference(ctx context.Context) error {
	start := s.now()
	var access string
	var prefErr error
	err := s.run(
		func() error {
			var err error
			access, err = s.accessTokenLocked()
			if err != nil {
				return err
			}
			if !s.mfa.PreferencePending {
				return apperrors.InvalidStatef("no totp preference is pending")
			}
			return nil
		},
		func() error {
			prefErr = s.provider.SetPreferredMfaFactor(ctx, access, domainauth.FactorTotp)
			return nil
		},
		func() error {
			if prefErr != nil {
				return apperrors.PreferencePending(prefErr)
			}
			s.enableTotpLocked()
			return nil
		},
	)
	s.emit(ctx, domainauth.OpSetTotpPreference, start, s.username(), err)
	return err
}

func (s *Session) enableTotpLocked() {
	if !s.mfa.HasFactor(domainauth.FactorTotp) {
		s.mfa.RegisteredFactors = append(s.mfa.RegisteredFactors, domainauth.FactorTotp)
	}
	s.mfa.Enabled = true
	s.mfa.PreferredFactor = domainauth.FactorTotp
	s.mfa.SetupSecret = ""
	s.mfa.SetupHandle = ""
	s.mfa.PreferencePending = false
}

func (s *Session) accessTokenLocked() (string, error) {
	if s.phase != domainauth.PhaseAuthenticated || s.tokens == nil || s.tokens.AccessToken == "" {
		return "", apperrors.SessionMissing("an authenticated session with an access token is required")
	}
	return s.tokens.AccessToken, nil
}

// SetProfile stores a profile fetched by the caller. The session must be Authenticated.
func (s *Session) SetProfile(p domainauth.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != domainauth.PhaseAuthenticated {
		return apperrors.InvalidStatef("cannot attach a profile in phase %s", s.phase)
	}
	s.profile = (&p).Clone()
	return nil
}

// ClearProfile drops the stored profile.
func (s *Session) ClearProfile() {
	s.mu.Lock()
	s.profile = nil
	s.mu.Unlock()
}

// Accessors. All are synchronous reads with no side effects.

func (s *Session) ID() string { return s.id.Load().(string) }

func (s *Session) Phase() domainauth.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) IsAuthenticated() bool {
	return s.Phase() == domainauth.PhaseAuthenticated
}

// AccessToken returns the access token when Authenticated.
func (s *Session) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return "", false
	}
	return s.tokens.AccessToken, s.tokens.AccessToken != ""
}

// IDToken returns the ID token when Authenticated.
func (s *Session) IDToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens == nil {
		return "", false
	}
	return s.tokens.IDToken, true
}

// PendingChallengeKind returns ChallengeNone when nothing is pending.
func (s *Session) PendingChallengeKind() domainauth.ChallengeKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return domainauth.ChallengeNone
	}
	return s.pending.Kind
}

func (s *Session) Identity() (domainauth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return domainauth.Identity{}, false
	}
	return *s.identity, true
}

// Profile returns a copy of the stored profile, or nil.
func (s *Session) Profile() *domainauth.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

func (s *Session) Mfa() domainauth.MfaEnrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMfa(s.mfa)
}

func (s *Session) Permissions() domainauth.Permissions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Permissions()
}

func (s *Session) IsSystemAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.IsSystemAdmin()
}

func (s *Session) IsAdminInOrg(orgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.IsAdminInOrg(orgID)
}

func (s *Session) IsAdminInCurrentOrg() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.IsAdminInCurrentOrg()
}

func (s *Session) CanManageOrganizations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.CanManageOrganizations()
}

func (s *Session) CanManageUsers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.CanManageUsers()
}

func (s *Session) CurrentOrganizationRole() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.CurrentOrganizationRole()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// LastActive is the time the session was last looked up or transitioned.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Snapshot is a redacted, point-in-time view suitable for API responses.
type Snapshot struct {
	ID          string                   `json:"-"`
	Phase       domainauth.Phase         `json:"phase"`
	Challenge   domainauth.ChallengeKind `json:"challenge,omitempty"`
	Identity    *domainauth.Identity     `json:"identity,omitempty"`
	Profile     *domainauth.Profile      `json:"profile,omitempty"`
	Permissions domainauth.Permissions   `json:"permissions"`
	Mfa         domainauth.MfaEnrollment `json:"mfa"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:          s.ID(),
		Phase:       s.phase,
		Profile:     s.profile.Clone(),
		Permissions: s.profile.Permissions(),
		Mfa:         copyMfa(s.mfa),
	}
	if s.pending != nil {
		snap.Challenge = s.pending.Kind
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

func (s *Session) username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.identity != nil:
		return s.identity.Username
	case s.pending != nil:
		return s.pending.Username
	}
	return ""
}

func (s *Session) emit(ctx context.Context, op domainauth.Operation, start time.Time, username string, err error) {
	s.mu.Lock()
	ev := domainauth.Event{
		At:        s.now(),
		SessionID: s.ID(),
		Op:        op,
		Phase:     s.phase,
		Username:  username,
		Duration:  s.now().Sub(start),
	}
	if s.pending != nil {
		ev.Challenge = s.pending.Kind
	}
	if s.identity != nil {
		ev.SubjectID = s.identity.SubjectID
		if ev.Username == "" {
			ev.Username = s.identity.Username
		}
	}
	s.mu.Unlock()

	switch {
	case err == nil && ev.Phase.IsAwaiting() && isLoginOp(op):
		ev.Result = domainauth.ResultChallenge
	case err == nil:
		ev.Result = domainauth.ResultSuccess
	case apperrors.IsPreferencePending(err):
		ev.Result = domainauth.ResultPreferencePending
	default:
		ev.Result = domainauth.ResultFailure
		ev.ErrorCode = string(apperrors.GetCode(err))
		ev.Reason = string(apperrors.GetReason(err))
		if ev.ErrorCode == "" {
			ev.ErrorCode = classifyPlain(err)
		}
	}
	s.observer.Observe(ctx, ev)
}

func isLoginOp(op domainauth.Operation) bool {
	return op == domainauth.OpBeginLogin ||
		op == domainauth.OpCompletePasswordChallenge ||
		op == domainauth.OpCompleteMfaChallenge
}

func classifyPlain(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return string(apperrors.ErrCodeCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return string(apperrors.ErrCodeTimeout)
	default:
		return string(apperrors.ErrCodeInternal)
	}
}

func copyMfa(m domainauth.MfaEnrollment) domainauth.MfaEnrollment {
	m.RegisteredFactors = append([]string(nil), m.RegisteredFactors...)
	return m
}

type noopObserver struct{}

func (noopObserver) Observe(context.Context, domainauth.Event) {}
