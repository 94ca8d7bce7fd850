package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/console-auth/internal/adapters/devauth"
	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/mocks"
	authdoubles "github.com/target/console-auth/internal/mocks/auth"
	"github.com/target/console-auth/internal/testutil"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sessionFixture struct {
	sess  *Session
	idp   *mocks.MockIdentityProvider
	obs   *authdoubles.RecordingObserver
	clock *fakeClock
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &sessionFixture{
		idp:   mocks.NewMockIdentityProvider(ctrl),
		obs:   &authdoubles.RecordingObserver{},
		clock: newFakeClock(),
	}
	f.sess = NewSession(SessionOptions{
		ID:       "sess-1",
		Provider: f.idp,
		Observer: f.obs,
		Now:      f.clock.Now,
	})
	return f
}

func (f *sessionFixture) tokens(t *testing.T, username string) domainauth.Tokens {
	t.Helper()
	return testutil.TokensFor(t, username, "sub-"+username, f.clock.Now().Add(time.Hour))
}

// authenticate drives the session to Authenticated with a direct success.
func (f *sessionFixture) authenticate(t *testing.T, username string) domainauth.Tokens {
	t.Helper()
	toks := f.tokens(t, username)
	f.idp.EXPECT().InitiateAuth(gomock.Any(), username, "pw").Return(domainauth.Success(toks), nil)
	res, err := f.sess.BeginLogin(context.Background(), username, "pw")
	require.NoError(t, err)
	require.Equal(t, domainauth.PhaseAuthenticated, res.Phase)
	return toks
}

func (f *sessionFixture) park(t *testing.T, username string, kind domainauth.ChallengeKind, handle string) {
	t.Helper()
	f.idp.EXPECT().InitiateAuth(gomock.Any(), username, "pw").Return(domainauth.Challenge(kind, handle), nil)
	res, err := f.sess.BeginLogin(context.Background(), username, "pw")
	require.NoError(t, err)
	require.Equal(t, kind, res.Challenge)
}

// assertInvariants checks the structural rules every committed state must obey.
func assertInvariants(t *testing.T, s *Session) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	assert.False(t, s.tokens != nil && s.pending != nil, "tokens and pending challenge are both set")
	assert.Equal(t, s.phase == domainauth.PhaseAuthenticated, s.tokens != nil, "tokens iff authenticated (phase %s)", s.phase)
	assert.Equal(t, s.phase.IsAwaiting(), s.pending != nil, "pending iff awaiting (phase %s)", s.phase)
	if s.pending != nil {
		assert.Equal(t, s.pending.Kind.Phase(), s.phase)
	}
	assert.Equal(t, s.tokens != nil, s.identity != nil, "identity iff tokens")
	if s.phase != domainauth.PhaseAuthenticated {
		assert.Nil(t, s.profile)
		assert.False(t, s.mfa.SetupInProgress())
	}
	assert.False(t, s.busy)
}

func TestSession_PasswordChallengeEndToEnd(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	toks := f.tokens(t, "bob")

	gomock.InOrder(
		f.idp.EXPECT().InitiateAuth(gomock.Any(), "bob", "pw1").
			Return(domainauth.Challenge(domainauth.ChallengePasswordRequired, "s1"), nil),
		f.idp.EXPECT().RespondToPasswordChallenge(gomock.Any(), "bob", "pw2", "s1").
			Return(domainauth.Success(toks), nil),
	)

	res, err := f.sess.BeginLogin(ctx, "bob", "pw1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.PhaseAwaitingPasswordChallenge, res.Phase)
	assert.Equal(t, domainauth.ChallengePasswordRequired, f.sess.PendingChallengeKind())
	assertInvariants(t, f.sess)

	res, err = f.sess.CompletePasswordChallenge(ctx, "pw2")
	require.NoError(t, err)
	assert.Equal(t, domainauth.PhaseAuthenticated, res.Phase)
	assert.True(t, f.sess.IsAuthenticated())
	assert.Equal(t, domainauth.ChallengeNone, f.sess.PendingChallengeKind())

	id, ok := f.sess.Identity()
	require.True(t, ok)
	assert.Equal(t, "bob", id.Username)
	assert.Equal(t, "sub-bob", id.SubjectID)

	access, ok := f.sess.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, toks.AccessToken, access)
	assertInvariants(t, f.sess)

	assert.Equal(t, []domainauth.Operation{
		domainauth.OpBeginLogin,
		domainauth.OpCompletePasswordChallenge,
	}, f.obs.Ops())
	evs := f.obs.Events()
	assert.Equal(t, domainauth.ResultChallenge, evs[0].Result)
	assert.Equal(t, domainauth.ResultSuccess, evs[1].Result)
	assert.Equal(t, "sub-bob", evs[1].SubjectID)
}

func TestSession_PasswordChallengeChainsIntoMfa(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.park(t, "carol", domainauth.ChallengePasswordRequired, "s1")

	f.idp.EXPECT().RespondToPasswordChallenge(gomock.Any(), "carol", "newpass!", "s1").
		Return(domainauth.Challenge(domainauth.ChallengeTotpMfa, "s2"), nil)
	res, err := f.sess.CompletePasswordChallenge(ctx, "newpass!")
	require.NoError(t, err)
	assert.Equal(t, domainauth.PhaseAwaitingMfaChallenge, res.Phase)
	assertInvariants(t, f.sess)

	f.idp.EXPECT().RespondToMfaChallenge(gomock.Any(), "carol", "123456", "s2", domainauth.ChallengeTotpMfa).
		Return(domainauth.Success(f.tokens(t, "carol")), nil)
	res, err = f.sess.CompleteMfaChallenge(ctx, " 123456 ")
	require.NoError(t, err)
	assert.Equal(t, domainauth.PhaseAuthenticated, res.Phase)
	assertInvariants(t, f.sess)
}

func TestSession_MfaCompletionWhileUnauthenticated(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.sess.CompleteMfaChallenge(context.Background(), "123456")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidState(err))
	assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.Phase())
	assertInvariants(t, f.sess)
}

func TestSession_ChallengeMismatch(t *testing.T) {
	ctx := context.Background()

	t.Run("mfa code for password challenge", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengePasswordRequired, "s1")

		_, err := f.sess.CompleteMfaChallenge(ctx, "123456")
		assert.True(t, apperrors.IsChallengeMismatch(err))
		assert.Equal(t, domainauth.PhaseAwaitingPasswordChallenge, f.sess.Phase())
		assertInvariants(t, f.sess)
	})

	t.Run("new password for mfa challenge", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengeSmsMfa, "s1")

		_, err := f.sess.CompletePasswordChallenge(ctx, "newpass!")
		assert.True(t, apperrors.IsChallengeMismatch(err))
		assert.Equal(t, domainauth.PhaseAwaitingMfaChallenge, f.sess.Phase())
	})

	t.Run("different username", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengeSmsMfa, "s1")

		_, err := f.sess.CompleteMfaChallenge(ctx, "123456", ForUsername("mallory"))
		assert.True(t, apperrors.IsChallengeMismatch(err))
		assert.Equal(t, domainauth.ChallengeSmsMfa, f.sess.PendingChallengeKind())
	})
}

func TestSession_TwoSegmentTokenDoesNotCommit(t *testing.T) {
	f := newSessionFixture(t)
	toks := domainauth.Tokens{IDToken: "aaa.bbb", AccessToken: "aaa.bbb"}
	f.idp.EXPECT().InitiateAuth(gomock.Any(), "bob", "pw").Return(domainauth.Success(toks), nil)

	_, err := f.sess.BeginLogin(context.Background(), "bob", "pw")
	require.Error(t, err)
	assert.True(t, apperrors.IsTokenDecode(err))
	assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.Phase())
	_, ok := f.sess.AccessToken()
	assert.False(t, ok)
	assertInvariants(t, f.sess)

	evs := f.obs.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, domainauth.ResultFailure, evs[0].Result)
	assert.Equal(t, string(apperrors.ErrCodeTokenDecode), evs[0].ErrorCode)
}

func TestSession_ProviderFailureKeepsPhase(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	f.park(t, "bob", domainauth.ChallengeSmsMfa, "s1")

	f.idp.EXPECT().RespondToMfaChallenge(gomock.Any(), "bob", "000000", "s1", domainauth.ChallengeSmsMfa).
		Return(domainauth.AuthOutcome{}, apperrors.AuthFailed(apperrors.ReasonCodeMismatch, errors.New("CodeMismatchException")))

	_, err := f.sess.CompleteMfaChallenge(ctx, "000000")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuthFailed(err))
	assert.Equal(t, domainauth.PhaseAwaitingMfaChallenge, f.sess.Phase())
	assert.Equal(t, domainauth.ChallengeSmsMfa, f.sess.PendingChallengeKind())
	assertInvariants(t, f.sess)

	evs := f.obs.Events()
	last := evs[len(evs)-1]
	assert.Equal(t, string(apperrors.ReasonCodeMismatch), last.Reason)
}

func TestSession_UnsupportedChallengeIsRejected(t *testing.T) {
	f := newSessionFixture(t)
	f.idp.EXPECT().InitiateAuth(gomock.Any(), "bob", "pw").
		Return(domainauth.Challenge("CUSTOM_CHALLENGE", "s1"), nil)

	_, err := f.sess.BeginLogin(context.Background(), "bob", "pw")
	assert.Equal(t, apperrors.ReasonUnsupportedChallenge, apperrors.GetReason(err))
	assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.Phase())
}

func TestSession_BeginLoginGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("rejected when authenticated", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")

		_, err := f.sess.BeginLogin(ctx, "bob", "pw")
		assert.True(t, apperrors.IsInvalidState(err))
		assert.True(t, f.sess.IsAuthenticated())
	})

	t.Run("replaces a pending challenge", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengePasswordRequired, "s1")
		f.park(t, "alice", domainauth.ChallengeSmsMfa, "s9")

		assert.Equal(t, domainauth.ChallengeSmsMfa, f.sess.PendingChallengeKind())
		f.sess.mu.Lock()
		assert.Equal(t, "alice", f.sess.pending.Username)
		assert.Equal(t, "s9", f.sess.pending.Handle)
		f.sess.mu.Unlock()
	})

	t.Run("validates input before calling the provider", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.sess.BeginLogin(ctx, "  ", "pw")
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestSession_LogoutAndReset(t *testing.T) {
	ctx := context.Background()

	t.Run("logout clears everything", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")
		require.NoError(t, f.sess.SetProfile(domainauth.Profile{RecentOrganizationID: "org1"}))

		require.NoError(t, f.sess.Logout(ctx))
		assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.Phase())
		assert.Nil(t, f.sess.Profile())
		_, ok := f.sess.Identity()
		assert.False(t, ok)
		assertInvariants(t, f.sess)
	})

	t.Run("logout requires authentication", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengeSmsMfa, "s1")

		assert.True(t, apperrors.IsInvalidState(f.sess.Logout(ctx)))
		assert.Equal(t, domainauth.PhaseAwaitingMfaChallenge, f.sess.Phase())
	})

	t.Run("reset abandons a challenge", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengeSmsMfa, "s1")

		require.NoError(t, f.sess.Reset(ctx))
		assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.Phase())
		assert.Equal(t, domainauth.ChallengeNone, f.sess.PendingChallengeKind())
		assertInvariants(t, f.sess)
	})
}

func TestSession_CheckStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("valid tokens are kept", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")

		assert.Equal(t, domainauth.PhaseAuthenticated, f.sess.CheckStatus(ctx))
		assert.Equal(t, []domainauth.Operation{domainauth.OpBeginLogin}, f.obs.Ops())
	})

	t.Run("expired tokens reset the session", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")
		f.clock.Advance(2 * time.Hour)

		assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.CheckStatus(ctx))
		assertInvariants(t, f.sess)

		evs := f.obs.Events()
		last := evs[len(evs)-1]
		assert.Equal(t, domainauth.OpCheckStatus, last.Op)
		assert.Equal(t, domainauth.ResultExpired, last.Result)
		assert.Equal(t, "tokens_expired", last.Reason)
		assert.Equal(t, "bob", last.Username)
	})

	t.Run("malformed tokens reset the session", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")
		f.sess.mu.Lock()
		f.sess.tokens.IDToken = "not-a-jwt"
		f.sess.mu.Unlock()

		assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.CheckStatus(ctx))
	})

	t.Run("pending challenges are untouched", func(t *testing.T) {
		f := newSessionFixture(t)
		f.park(t, "bob", domainauth.ChallengePasswordRequired, "s1")
		f.clock.Advance(24 * time.Hour)

		assert.Equal(t, domainauth.PhaseAwaitingPasswordChallenge, f.sess.CheckStatus(ctx))
	})
}

func TestSession_ConcurrentTransitionFailsFast(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	toks := f.tokens(t, "bob")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.idp.EXPECT().InitiateAuth(gomock.Any(), "bob", "pw").
		DoAndReturn(func(context.Context, string, string) (domainauth.AuthOutcome, error) {
			close(entered)
			<-release
			return domainauth.Success(toks), nil
		})

	done := make(chan error, 1)
	go func() {
		_, err := f.sess.BeginLogin(ctx, "bob", "pw")
		done <- err
	}()
	<-entered

	// Reads and CheckStatus see the pre-transition state without blocking.
	assert.Equal(t, domainauth.PhaseUnauthenticated, f.sess.CheckStatus(ctx))
	assert.False(t, f.sess.IsAuthenticated())

	_, err := f.sess.BeginLogin(ctx, "bob", "pw")
	assert.True(t, apperrors.IsInvalidState(err))
	assert.True(t, apperrors.IsInvalidState(f.sess.Reset(ctx)))

	close(release)
	require.NoError(t, <-done)
	assert.True(t, f.sess.IsAuthenticated())
	assertInvariants(t, f.sess)
}

func TestSession_PanicInProviderReleasesSession(t *testing.T) {
	f := newSessionFixture(t)
	f.idp.EXPECT().InitiateAuth(gomock.Any(), "bob", "pw").
		DoAndReturn(func(context.Context, string, string) (domainauth.AuthOutcome, error) {
			panic("boom")
		})

	assert.Panics(t, func() { _, _ = f.sess.BeginLogin(context.Background(), "bob", "pw") })
	assert.NoError(t, f.sess.Reset(context.Background()))
}

func TestSession_MfaRequiresAuthentication(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	_, err := f.sess.FetchMfaStatus(ctx)
	assert.True(t, apperrors.IsSessionMissing(err))
	_, err = f.sess.StartTotpEnrollment(ctx)
	assert.True(t, apperrors.IsSessionMissing(err))
	assert.True(t, apperrors.IsSessionMissing(f.sess.VerifyAndEnableTotp(ctx, "123456")))
	assert.True(t, apperrors.IsSessionMissing(f.sess.RetryTotpPreference(ctx)))
}

func TestSession_FetchMfaStatus(t *testing.T) {
	f := newSessionFixture(t)
	toks := f.authenticate(t, "bob")

	f.idp.EXPECT().GetMfaStatus(gomock.Any(), toks.AccessToken).Return(domainauth.MfaStatus{
		RegisteredFactors: []string{domainauth.FactorSms},
		PreferredFactor:   domainauth.FactorSms,
	}, nil)

	got, err := f.sess.FetchMfaStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, []string{domainauth.FactorSms}, got.RegisteredFactors)

	got.RegisteredFactors[0] = "tampered"
	assert.Equal(t, domainauth.FactorSms, f.sess.Mfa().RegisteredFactors[0])
}

func TestSession_TotpEnrollment(t *testing.T) {
	ctx := context.Background()
	setup := domainauth.TotpSetup{Secret: "JBSWY3DPEHPK3PXP", Handle: "assoc-1"}

	t.Run("verify and prefer", func(t *testing.T) {
		f := newSessionFixture(t)
		toks := f.authenticate(t, "bob")

		gomock.InOrder(
			f.idp.EXPECT().BeginTotpEnrollment(gomock.Any(), toks.AccessToken).Return(setup, nil),
			f.idp.EXPECT().VerifyTotpEnrollment(gomock.Any(), toks.AccessToken, "123456", "assoc-1").Return(nil),
			f.idp.EXPECT().SetPreferredMfaFactor(gomock.Any(), toks.AccessToken, domainauth.FactorTotp).Return(nil),
		)

		got, err := f.sess.StartTotpEnrollment(ctx)
		require.NoError(t, err)
		assert.Equal(t, setup, got)
		assert.True(t, f.sess.Mfa().SetupInProgress())

		require.NoError(t, f.sess.VerifyAndEnableTotp(ctx, "123456"))
		m := f.sess.Mfa()
		assert.True(t, m.Enabled)
		assert.Equal(t, domainauth.FactorTotp, m.PreferredFactor)
		assert.True(t, m.HasFactor(domainauth.FactorTotp))
		assert.False(t, m.SetupInProgress())
	})

	t.Run("preference pending then retried", func(t *testing.T) {
		f := newSessionFixture(t)
		toks := f.authenticate(t, "bob")

		gomock.InOrder(
			f.idp.EXPECT().BeginTotpEnrollment(gomock.Any(), toks.AccessToken).Return(setup, nil),
			f.idp.EXPECT().VerifyTotpEnrollment(gomock.Any(), toks.AccessToken, "123456", "assoc-1").Return(nil),
			f.idp.EXPECT().SetPreferredMfaFactor(gomock.Any(), toks.AccessToken, domainauth.FactorTotp).
				Return(apperrors.AuthFailed(apperrors.ReasonProviderUnavailable, errors.New("503"))),
			f.idp.EXPECT().SetPreferredMfaFactor(gomock.Any(), toks.AccessToken, domainauth.FactorTotp).Return(nil),
		)

		_, err := f.sess.StartTotpEnrollment(ctx)
		require.NoError(t, err)

		err = f.sess.VerifyAndEnableTotp(ctx, "123456")
		require.Error(t, err)
		assert.True(t, apperrors.IsPreferencePending(err))
		m := f.sess.Mfa()
		assert.True(t, m.PreferencePending)
		assert.False(t, m.Enabled)
		assert.True(t, f.sess.IsAuthenticated())

		require.NoError(t, f.sess.RetryTotpPreference(ctx))
		m = f.sess.Mfa()
		assert.True(t, m.Enabled)
		assert.False(t, m.PreferencePending)
		assert.Equal(t, domainauth.FactorTotp, m.PreferredFactor)

		evs := f.obs.Events()
		var results []domainauth.Result
		for _, ev := range evs {
			results = append(results, ev.Result)
		}
		assert.Contains(t, results, domainauth.ResultPreferencePending)
	})

	t.Run("blank code is reported to observers", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")

		err := f.sess.VerifyAndEnableTotp(ctx, "   ")
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		evs := f.obs.Events()
		require.NotEmpty(t, evs)
		last := evs[len(evs)-1]
		assert.Equal(t, domainauth.OpVerifyTotp, last.Op)
		assert.Equal(t, domainauth.ResultFailure, last.Result)
		assert.Equal(t, "bob", last.Username)
	})

	t.Run("failed verification changes nothing", func(t *testing.T) {
		f := newSessionFixture(t)
		toks := f.authenticate(t, "bob")

		f.idp.EXPECT().BeginTotpEnrollment(gomock.Any(), toks.AccessToken).Return(setup, nil)
		f.idp.EXPECT().VerifyTotpEnrollment(gomock.Any(), toks.AccessToken, "000000", "assoc-1").
			Return(apperrors.AuthFailed(apperrors.ReasonVerificationFailed, nil))

		_, err := f.sess.StartTotpEnrollment(ctx)
		require.NoError(t, err)

		err = f.sess.VerifyAndEnableTotp(ctx, "000000")
		assert.True(t, apperrors.IsAuthFailed(err))
		m := f.sess.Mfa()
		assert.False(t, m.Enabled)
		assert.False(t, m.PreferencePending)
		assert.True(t, m.SetupInProgress())
	})

	t.Run("verify before start", func(t *testing.T) {
		f := newSessionFixture(t)
		f.authenticate(t, "bob")

		assert.True(t, apperrors.IsInvalidState(f.sess.VerifyAndEnableTotp(ctx, "123456")))
		assert.True(t, apperrors.IsInvalidState(f.sess.RetryTotpPreference(ctx)))
	})
}

func TestSession_ProfileAndPermissions(t *testing.T) {
	f := newSessionFixture(t)

	err := f.sess.SetProfile(domainauth.Profile{})
	assert.True(t, apperrors.IsInvalidState(err), "profile requires authentication")
	assert.False(t, f.sess.CanManageUsers())

	f.authenticate(t, "bob")
	require.NoError(t, f.sess.SetProfile(domainauth.Profile{
		OrganizationRoles: []domainauth.OrganizationRole{
			{OrganizationID: "org1", Role: "admin"},
			{OrganizationID: "org2", Role: "viewer"},
		},
		RecentOrganizationID: "org1",
	}))

	assert.True(t, f.sess.CanManageUsers())
	assert.True(t, f.sess.IsAdminInOrg("org1"))
	assert.True(t, f.sess.IsAdminInCurrentOrg())
	assert.False(t, f.sess.IsSystemAdmin())
	assert.False(t, f.sess.CanManageOrganizations())
	role, ok := f.sess.CurrentOrganizationRole()
	assert.True(t, ok)
	assert.Equal(t, "admin", role)

	p := f.sess.Profile()
	p.OrganizationRoles[0].Role = "systemadmin"
	assert.False(t, f.sess.IsSystemAdmin(), "returned profile must be a copy")

	snap := f.sess.Snapshot()
	assert.Equal(t, domainauth.PhaseAuthenticated, snap.Phase)
	assert.True(t, snap.Permissions.CanManageUsers)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "bob", snap.Identity.Username)
}

// TestSession_InvariantsHoldUnderRandomOperations drives a real dev provider with a
// random operation sequence and checks the state invariants after every step.
func TestSession_InvariantsHoldUnderRandomOperations(t *testing.T) {
	provider, err := devauth.NewProvider(devauth.Config{
		Users: []devauth.User{
			{Username: "plain", Password: "password1"},
			{Username: "rotate", Password: "password1", MustChangePassword: true},
			{Username: "sms", Password: "password1", SmsCode: "654321"},
		},
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	sess := NewSession(SessionOptions{ID: "prop", Provider: provider})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	users := []string{"plain", "rotate", "sms", "nobody"}
	passwords := []string{"password1", "wrong"}
	codes := []string{"654321", "000000"}

	ops := []func(){
		func() { _, _ = sess.BeginLogin(ctx, users[rng.Intn(len(users))], passwords[rng.Intn(len(passwords))]) },
		func() { _, _ = sess.CompletePasswordChallenge(ctx, "rotated-password") },
		func() { _, _ = sess.CompletePasswordChallenge(ctx, "short") },
		func() { _, _ = sess.CompleteMfaChallenge(ctx, codes[rng.Intn(len(codes))]) },
		func() { _ = sess.Logout(ctx) },
		func() { _ = sess.Reset(ctx) },
		func() { sess.CheckStatus(ctx) },
		func() { _, _ = sess.FetchMfaStatus(ctx) },
	}

	for i := 0; i < 500; i++ {
		ops[rng.Intn(len(ops))]()
		assertInvariants(t, sess)
		if t.Failed() {
			t.Fatalf("invariant broken after step %d", i)
		}
	}
}
