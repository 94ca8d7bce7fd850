package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

// DefaultIdleTTL bounds how long an untouched session stays in the registry.
const DefaultIdleTTL = 30 * time.Minute

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.IdentityProvider
	Verifier ports.TokenVerifier
	// Profiles is optional; when set, a profile is loaded whenever a session becomes Authenticated.
	Profiles *ProfileLoader
	Roles    ports.RoleMapper
	Observer ports.AuthObserver
	IdleTTL  time.Duration
	// TotpIssuer labels provisioning URIs in authenticator apps.
	TotpIssuer string
	Logger     *slog.Logger
	Now        func() time.Time
}

// AuthService owns the session registry and coordinates profile loading around
// session transitions.
type AuthService struct {
	provider   ports.IdentityProvider
	verifier   ports.TokenVerifier
	profiles   *ProfileLoader
	roles      ports.RoleMapper
	observer   ports.AuthObserver
	idleTTL    time.Duration
	totpIssuer string
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

var errSessionExpired = apperrors.SessionMissing("session not found or expired")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	s := &AuthService{
		provider:   opts.Provider,
		verifier:   opts.Verifier,
		profiles:   opts.Profiles,
		roles:      opts.Roles,
		observer:   opts.Observer,
		idleTTL:    opts.IdleTTL,
		totpIssuer: opts.TotpIssuer,
		logger:     opts.Logger,
		now:        opts.Now,
		sessions:   make(map[string]*Session),
	}
	if s.idleTTL <= 0 {
		s.idleTTL = DefaultIdleTTL
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.totpIssuer == "" {
		s.totpIssuer = "console-auth"
	}
	return s
}

// NewSession registers a fresh Unauthenticated session.
func (s *AuthService) NewSession() *Session {
	sess := NewSession(SessionOptions{
		ID:       generateSessionID(),
		Provider: s.provider,
		Verifier: s.verifier,
		Observer: s.observer,
		Now:      s.now,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictIdleLocked()
	s.sessions[sess.ID()] = sess
	return sess
}

// Session returns a live session. Sessions idle longer than the TTL are evicted here.
func (s *AuthService) Session(id string) (*Session, error) {
	if id == "" {
		return nil, errSessionExpired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errSessionExpired
	}
	if s.idle(sess) {
		delete(s.sessions, id)
		return nil, errSessionExpired
	}
	sess.touch()
	return sess, nil
}

// SessionOrNew returns the session for id, or registers a new one when id is unknown.
func (s *AuthService) SessionOrNew(id string) (sess *Session, created bool) {
	if sess, err := s.Session(id); err == nil {
		return sess, false
	}
	return s.NewSession(), true
}

// Destroy removes a session from the registry.
func (s *AuthService) Destroy(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Rotate re-keys a registered session under a fresh id and returns it. The old id
// stops resolving immediately.
func (s *AuthService) Rotate(sess *Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := sess.ID()
	if s.sessions[old] != sess {
		return "", errSessionExpired
	}
	id := generateSessionID()
	delete(s.sessions, old)
	sess.id.Store(id)
	s.sessions[id] = sess
	return id, nil
}

// Close flushes observers that buffer events, such as the audit writer.
func (s *AuthService) Close(ctx context.Context) error {
	if c, ok := s.observer.(closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// IdleTTL is how long an untouched session survives.
func (s *AuthService) IdleTTL() time.Duration { return s.idleTTL }

// Len reports how many sessions are registered, including idle ones not yet evicted.
func (s *AuthService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepIdle evicts every idle session and reports how many were removed.
func (s *AuthService) SweepIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.sessions)
	s.evictIdleLocked()
	return before - len(s.sessions)
}

func (s *AuthService) idle(sess *Session) bool {
	return s.now().Sub(sess.LastActive()) > s.idleTTL
}

func (s *AuthService) evictIdleLocked() {
	for id, sess := range s.sessions {
		if s.idle(sess) {
			delete(s.sessions, id)
		}
	}
}

// Login runs BeginLogin and loads the profile when the session becomes Authenticated.
func (s *AuthService) Login(ctx context.Context, sess *Session, username, password string) (TransitionResult, error) {
	res, err := sess.BeginLogin(ctx, username, password)
	if err != nil {
		return res, err
	}
	s.afterTransition(ctx, sess, res)
	return res, nil
}

// CompletePasswordChallenge answers the pending password challenge.
func (s *AuthService) CompletePasswordChallenge(
	ctx context.Context,
	sess *Session,
	newPassword string,
	opts ...CompletionOption,
) (TransitionResult, error) {
	res, err := sess.CompletePasswordChallenge(ctx, newPassword, opts...)
	if err != nil {
		return res, err
	}
	s.afterTransition(ctx, sess, res)
	return res, nil
}

// CompleteMfaChallenge answers the pending MFA challenge.
func (s *AuthService) CompleteMfaChallenge(
	ctx context.Context,
	sess *Session,
	code string,
	opts ...CompletionOption,
) (TransitionResult, error) {
	res, err := sess.CompleteMfaChallenge(ctx, code, opts...)
	if err != nil {
		return res, err
	}
	s.afterTransition(ctx, sess, res)
	return res, nil
}

// afterTransition gives a newly Authenticated session a fresh id, so an id that was known
// before sign-in never carries the authenticated session, then loads the profile. A failed
// load leaves the profile absent; the login itself still stands.
func (s *AuthService) afterTransition(ctx context.Context, sess *Session, res TransitionResult) {
	if res.Phase != domainauth.PhaseAuthenticated {
		return
	}
	if _, err := s.Rotate(sess); err != nil {
		// Sessions built outside the registry have no id to rotate.
		s.logger.DebugContext(ctx, "session not registered, id kept", "error", err)
	}
	if s.profiles == nil {
		return
	}
	start := s.now()
	_, err := s.profiles.Load(ctx, sess)
	s.emitProfile(ctx, sess, domainauth.OpLoadProfile, start, err)
	if err != nil {
		s.logger.WarnContext(ctx, "profile load failed after login",
			"session_id", sess.ID(),
			"error", err,
		)
	}
}

// Logout logs the session out and always removes it from the registry.
func (s *AuthService) Logout(ctx context.Context, sess *Session) error {
	defer s.Destroy(sess.ID())
	return sess.Logout(ctx)
}

// RefreshProfile reloads the profile, bypassing the cache.
func (s *AuthService) RefreshProfile(ctx context.Context, sess *Session) (domainauth.Profile, error) {
	if s.profiles == nil {
		return domainauth.Profile{}, apperrors.Configuration("profile source is not configured")
	}
	start := s.now()
	p, err := s.profiles.Refresh(ctx, sess)
	s.emitProfile(ctx, sess, domainauth.OpLoadProfile, start, err)
	return p, err
}

// SwitchOrganization changes the session's current organization.
func (s *AuthService) SwitchOrganization(ctx context.Context, sess *Session, orgID string) (domainauth.Profile, error) {
	if s.profiles == nil {
		return domainauth.Profile{}, apperrors.Configuration("profile source is not configured")
	}
	start := s.now()
	p, err := s.profiles.SwitchOrganization(ctx, sess, orgID)
	s.emitProfile(ctx, sess, domainauth.OpSwitchOrganization, start, err)
	return p, err
}

// Role maps the session's profile to a middleware tier.
func (s *AuthService) Role(sess *Session) domainauth.Role {
	if s.roles == nil {
		return domainauth.RoleGuest
	}
	return s.roles.Map(sess.Profile())
}

// TotpEnrollment is the client-facing result of starting TOTP enrollment.
type TotpEnrollment struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
}

// StartTotpEnrollment begins enrollment and builds a provisioning URI for the secret.
func (s *AuthService) StartTotpEnrollment(ctx context.Context, sess *Session) (TotpEnrollment, error) {
	setup, err := sess.StartTotpEnrollment(ctx)
	if err != nil {
		return TotpEnrollment{}, err
	}
	account := "user"
	if id, ok := sess.Identity(); ok {
		account = id.Username
		if id.Email != "" {
			account = id.Email
		}
	}
	uri, err := ProvisioningURI(s.totpIssuer, account, setup.Secret)
	if err != nil {
		s.logger.WarnContext(ctx, "could not build totp provisioning uri", "session_id", sess.ID(), "error", err)
	}
	return TotpEnrollment{Secret: setup.Secret, URI: uri}, nil
}

func (s *AuthService) emitProfile(
	ctx context.Context,
	sess *Session,
	op domainauth.Operation,
	start time.Time,
	err error,
) {
	ev := domainauth.Event{
		At:        s.now(),
		SessionID: sess.ID(),
		Op:        op,
		Result:    domainauth.ResultSuccess,
		Phase:     sess.Phase(),
		Duration:  s.now().Sub(start),
	}
	if id, ok := sess.Identity(); ok {
		ev.Username = id.Username
		ev.SubjectID = id.SubjectID
	}
	if err != nil {
		ev.Result = domainauth.ResultFailure
		ev.ErrorCode = string(apperrors.GetCode(err))
		if ev.ErrorCode == "" {
			ev.ErrorCode = classifyPlain(err)
		}
		ev.Reason = string(apperrors.GetReason(err))
	}
	s.observer.Observe(ctx, ev)
}

// generateSessionID creates a new random session identifier.
func generateSessionID() string {
	return uuid.New().String()
}
