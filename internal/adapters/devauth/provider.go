package devauth

// Package devauth provides a config-driven IdentityProvider for local development.
// It mints HS256 tokens shaped like user pool tokens and can script the
// NEW_PASSWORD_REQUIRED, SMS_MFA, and SOFTWARE_TOKEN_MFA challenges.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

const (
	defaultTokenTTL     = time.Hour
	defaultHandleTTL    = 3 * time.Minute
	defaultIssuer       = "console-auth-dev"
	minPasswordLength   = 8
	claimTokenUse       = "token_use"
	claimProviderUser   = "cognito:username"
	tokenUseAccess      = "access"
	tokenUseID          = "id"
	handleRandomBytes   = 24
	signingKeyByteCount = 32
)

// User is a scripted account.
type User struct {
	Username string
	Password string
	Email    string
	// MustChangePassword forces NEW_PASSWORD_REQUIRED on the next sign-in.
	MustChangePassword bool
	// SmsCode, when set, registers SMS MFA and is the accepted code.
	SmsCode string
	// TotpSecret, when set, registers TOTP MFA (base32).
	TotpSecret string
}

// Config controls the dev provider behavior.
type Config struct {
	Users      []User
	ClientID   string
	Issuer     string
	SigningKey []byte        // random when empty
	TokenTTL   time.Duration // default 1h when zero
	HandleTTL  time.Duration // default 3m when zero
	Now        func() time.Time
}

type account struct {
	User
	subject          string
	preferred        string
	pendingTotp      string
	pendingTotpToken string
}

func (a *account) factors() []string {
	var out []string
	if a.SmsCode != "" {
		out = append(out, domainauth.FactorSms)
	}
	if a.TotpSecret != "" {
		out = append(out, domainauth.FactorTotp)
	}
	return out
}

// mfaChallenge picks the challenge a fully-passworded account must answer, or none.
func (a *account) mfaChallenge() domainauth.ChallengeKind {
	switch {
	case a.preferred == domainauth.FactorSms && a.SmsCode != "":
		return domainauth.ChallengeSmsMfa
	case a.TotpSecret != "":
		return domainauth.ChallengeTotpMfa
	case a.SmsCode != "":
		return domainauth.ChallengeSmsMfa
	default:
		return domainauth.ChallengeNone
	}
}

type pendingAuth struct {
	username string
	kind     domainauth.ChallengeKind
	expires  time.Time
}

// Provider implements ports.IdentityProvider in memory.
type Provider struct {
	mu        sync.Mutex
	accounts  map[string]*account
	handles   map[string]pendingAuth
	key       []byte
	clientID  string
	issuer    string
	tokenTTL  time.Duration
	handleTTL time.Duration
	now       func() time.Time
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("dev auth: at least one user is required")
	}
	p := &Provider{
		accounts:  make(map[string]*account, len(cfg.Users)),
		handles:   make(map[string]pendingAuth),
		key:       cfg.SigningKey,
		clientID:  cfg.ClientID,
		issuer:    cfg.Issuer,
		tokenTTL:  cfg.TokenTTL,
		handleTTL: cfg.HandleTTL,
		now:       cfg.Now,
	}
	if p.clientID == "" {
		p.clientID = "devauth"
	}
	if p.issuer == "" {
		p.issuer = defaultIssuer
	}
	if p.tokenTTL == 0 {
		p.tokenTTL = defaultTokenTTL
	}
	if p.handleTTL == 0 {
		p.handleTTL = defaultHandleTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	if len(p.key) == 0 {
		p.key = make([]byte, signingKeyByteCount)
		if _, err := rand.Read(p.key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	for _, u := range cfg.Users {
		if u.Username == "" || u.Password == "" {
			return nil, errors.New("dev auth: users need a username and password")
		}
		p.accounts[u.Username] = &account{
			User:    u,
			subject: uuid.NewSHA1(uuid.NameSpaceURL, []byte("devauth:"+u.Username)).String(),
		}
	}
	return p, nil
}

// InitiateAuth checks the password and returns tokens or the next challenge.
func (p *Provider) InitiateAuth(_ context.Context, username, password string) (domainauth.AuthOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.accounts[username]
	if !ok || acct.Password != password {
		return domainauth.AuthOutcome{}, apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("incorrect username or password"))
	}
	if acct.MustChangePassword {
		return p.challengeLocked(acct, domainauth.ChallengePasswordRequired)
	}
	return p.afterPasswordLocked(acct)
}

// RespondToPasswordChallenge sets the new password and continues the flow.
func (p *Provider) RespondToPasswordChallenge(
	_ context.Context,
	username, newPassword, handle string,
) (domainauth.AuthOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, err := p.consumeLocked(handle, username, domainauth.ChallengePasswordRequired)
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	if len(newPassword) < minPasswordLength {
		return domainauth.AuthOutcome{}, apperrors.AuthFailed(
			apperrors.ReasonPasswordPolicy,
			fmt.Errorf("password must be at least %d characters", minPasswordLength),
		)
	}
	acct.Password = newPassword
	acct.MustChangePassword = false
	return p.afterPasswordLocked(acct)
}

// RespondToMfaChallenge validates an SMS or TOTP code.
func (p *Provider) RespondToMfaChallenge(
	_ context.Context,
	username, code, handle string,
	kind domainauth.ChallengeKind,
) (domainauth.AuthOutcome, error) {
	if !kind.IsMfa() {
		return domainauth.AuthOutcome{}, apperrors.ChallengeMismatchf("unsupported mfa challenge %q", kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.handles[handle]
	if !ok || pending.username != username || pending.kind != kind {
		return domainauth.AuthOutcome{}, apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("invalid session for the user"))
	}
	if p.now().After(pending.expires) {
		delete(p.handles, handle)
		return domainauth.AuthOutcome{}, apperrors.AuthFailed(apperrors.ReasonCodeExpired, errors.New("session is expired"))
	}
	acct := p.accounts[username]

	var valid bool
	switch kind {
	case domainauth.ChallengeSmsMfa:
		valid = code == acct.SmsCode
	case domainauth.ChallengeTotpMfa:
		valid = totp.Validate(code, acct.TotpSecret)
	}
	if !valid {
		// The handle stays usable so the user can retype the code.
		return domainauth.AuthOutcome{}, apperrors.AuthFailed(apperrors.ReasonCodeMismatch, errors.New("invalid code received for user"))
	}
	delete(p.handles, handle)
	return p.successLocked(acct)
}

// GetMfaStatus reports registered and preferred factors.
func (p *Provider) GetMfaStatus(_ context.Context, accessToken string) (domainauth.MfaStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, err := p.accountForTokenLocked(accessToken)
	if err != nil {
		return domainauth.MfaStatus{}, err
	}
	return domainauth.MfaStatus{RegisteredFactors: acct.factors(), PreferredFactor: acct.preferred}, nil
}

// BeginTotpEnrollment generates a fresh TOTP secret for the caller.
func (p *Provider) BeginTotpEnrollment(_ context.Context, accessToken string) (domainauth.TotpSetup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, err := p.accountForTokenLocked(accessToken)
	if err != nil {
		return domainauth.TotpSetup{}, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: p.issuer, AccountName: acct.Username})
	if err != nil {
		return domainauth.TotpSetup{}, apperrors.AuthFailed(apperrors.ReasonProviderUnavailable, err)
	}
	handle, err := randomHandle()
	if err != nil {
		return domainauth.TotpSetup{}, err
	}
	acct.pendingTotp = key.Secret()
	acct.pendingTotpToken = handle
	return domainauth.TotpSetup{Secret: acct.pendingTotp, Handle: handle}, nil
}

// VerifyTotpEnrollment registers the pending secret once a valid code is shown.
func (p *Provider) VerifyTotpEnrollment(_ context.Context, accessToken, userCode, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, err := p.accountForTokenLocked(accessToken)
	if err != nil {
		return err
	}
	if acct.pendingTotp == "" || (handle != "" && handle != acct.pendingTotpToken) {
		return apperrors.AuthFailed(apperrors.ReasonVerificationFailed, errors.New("no software token association in progress"))
	}
	if !totp.Validate(userCode, acct.pendingTotp) {
		return apperrors.AuthFailed(apperrors.ReasonCodeMismatch, errors.New("invalid code received for user"))
	}
	acct.TotpSecret = acct.pendingTotp
	acct.pendingTotp = ""
	acct.pendingTotpToken = ""
	return nil
}

// SetPreferredMfaFactor marks a registered factor preferred.
func (p *Provider) SetPreferredMfaFactor(_ context.Context, accessToken, factor string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, err := p.accountForTokenLocked(accessToken)
	if err != nil {
		return err
	}
	for _, f := range acct.factors() {
		if f == factor {
			acct.preferred = factor
			return nil
		}
	}
	return apperrors.AuthFailed(apperrors.ReasonVerificationFailed, fmt.Errorf("factor %s is not registered", factor))
}

func (p *Provider) afterPasswordLocked(acct *account) (domainauth.AuthOutcome, error) {
	if kind := acct.mfaChallenge(); kind != domainauth.ChallengeNone {
		return p.challengeLocked(acct, kind)
	}
	return p.successLocked(acct)
}

func (p *Provider) challengeLocked(acct *account, kind domainauth.ChallengeKind) (domainauth.AuthOutcome, error) {
	handle, err := randomHandle()
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	p.handles[handle] = pendingAuth{username: acct.Username, kind: kind, expires: p.now().Add(p.handleTTL)}
	return domainauth.Challenge(kind, handle), nil
}

func (p *Provider) consumeLocked(handle, username string, kind domainauth.ChallengeKind) (*account, error) {
	pending, ok := p.handles[handle]
	if !ok || pending.username != username || pending.kind != kind {
		return nil, apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("invalid session for the user"))
	}
	delete(p.handles, handle)
	if p.now().After(pending.expires) {
		return nil, apperrors.AuthFailed(apperrors.ReasonCodeExpired, errors.New("session is expired"))
	}
	return p.accounts[username], nil
}

func (p *Provider) successLocked(acct *account) (domainauth.AuthOutcome, error) {
	now := p.now()
	exp := now.Add(p.tokenTTL)

	id, err := p.sign(jwt.MapClaims{
		"iss":             p.issuer,
		"aud":             p.clientID,
		"sub":             acct.subject,
		"email":           acct.Email,
		claimProviderUser: acct.Username,
		claimTokenUse:     tokenUseID,
		"iat":             now.Unix(),
		"exp":             exp.Unix(),
	})
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	access, err := p.sign(jwt.MapClaims{
		"iss":         p.issuer,
		"client_id":   p.clientID,
		"sub":         acct.subject,
		"username":    acct.Username,
		claimTokenUse: tokenUseAccess,
		"iat":         now.Unix(),
		"exp":         exp.Unix(),
	})
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	refresh, err := randomHandle()
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	return domainauth.Success(domainauth.Tokens{IDToken: id, AccessToken: access, RefreshToken: refresh}), nil
}

func (p *Provider) sign(claims jwt.MapClaims) (string, error) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// accountForTokenLocked validates an access token minted by this provider.
func (p *Provider) accountForTokenLocked(accessToken string) (*account, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (any, error) { return p.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, apperrors.AuthFailed(apperrors.ReasonCredentials, fmt.Errorf("access token rejected: %w", err))
	}
	if use, _ := claims[claimTokenUse].(string); use != tokenUseAccess {
		return nil, apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("not an access token"))
	}
	username, _ := claims["username"].(string)
	acct, ok := p.accounts[username]
	if !ok {
		return nil, apperrors.AuthFailed(apperrors.ReasonCredentials, errors.New("user does not exist"))
	}
	return acct, nil
}

func randomHandle() (string, error) {
	b := make([]byte, handleRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate handle: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
