// Package cognito implements ports.IdentityProvider against an Amazon Cognito user pool
// using the USER_PASSWORD_AUTH flow of a confidential app client.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

// Challenge response and auth parameter keys defined by the user pool API.
const (
	paramUsername        = "USERNAME"
	paramPassword        = "PASSWORD"
	paramSecretHash      = "SECRET_HASH"
	paramNewPassword     = "NEW_PASSWORD"
	paramSmsMfaCode      = "SMS_MFA_CODE"
	paramSoftwareMfaCode = "SOFTWARE_TOKEN_MFA_CODE"
)

// API is the subset of the Cognito user pool client used here, enabling mock injection for testing.
type API interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(
		ctx context.Context,
		in *cip.RespondToAuthChallengeInput,
		optFns ...func(*cip.Options),
	) (*cip.RespondToAuthChallengeOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	AssociateSoftwareToken(
		ctx context.Context,
		in *cip.AssociateSoftwareTokenInput,
		optFns ...func(*cip.Options),
	) (*cip.AssociateSoftwareTokenOutput, error)
	VerifySoftwareToken(
		ctx context.Context,
		in *cip.VerifySoftwareTokenInput,
		optFns ...func(*cip.Options),
	) (*cip.VerifySoftwareTokenOutput, error)
	SetUserMFAPreference(
		ctx context.Context,
		in *cip.SetUserMFAPreferenceInput,
		optFns ...func(*cip.Options),
	) (*cip.SetUserMFAPreferenceOutput, error)
}

// Config configures the user pool app client.
type Config struct {
	Region       string
	Endpoint     string // optional override, e.g. a local emulator
	ClientID     string
	ClientSecret string
	// TotpDeviceName labels the verified software token in the user pool.
	TotpDeviceName string
}

// Client implements ports.IdentityProvider.
type Client struct {
	api    API
	cfg    Config
	logger *slog.Logger
}

var _ ports.IdentityProvider = (*Client)(nil)

// ClientOptions groups dependencies for NewClient.
type ClientOptions struct {
	Config Config
	// API overrides the SDK client. Tests inject a fake here.
	API    API
	Logger *slog.Logger
}

// NewClient builds a Client. When opts.API is nil a regional SDK client is created
// with anonymous credentials; the public user pool auth APIs are unsigned.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.Config.ClientID == "" {
		return nil, apperrors.Configuration("cognito client id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	api := opts.API
	if api == nil {
		if opts.Config.Region == "" {
			return nil, apperrors.Configuration("cognito region is required")
		}
		var err error
		api, err = newSDKClient(ctx, opts.Config)
		if err != nil {
			return nil, err
		}
	}
	return &Client{api: api, cfg: opts.Config, logger: logger.With("component", "cognito")}, nil
}

func newSDKClient(ctx context.Context, cfg Config) (API, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	return cip.NewFromConfig(awsCfg, func(o *cip.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (c *Client) secretHash(username string) (string, error) {
	return SecretHash(username, c.cfg.ClientID, c.cfg.ClientSecret)
}

// InitiateAuth submits the credential under USER_PASSWORD_AUTH.
func (c *Client) InitiateAuth(ctx context.Context, username, password string) (domainauth.AuthOutcome, error) {
	hash, err := c.secretHash(username)
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}

	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.cfg.ClientID),
		AuthParameters: map[string]string{
			paramUsername:   username,
			paramPassword:   password,
			paramSecretHash: hash,
		},
	})
	if err != nil {
		c.logger.DebugContext(ctx, "initiate auth rejected", "error_code", errorCode(err))
		return domainauth.AuthOutcome{}, classify(err)
	}
	if out == nil {
		return domainauth.AuthOutcome{}, emptyResponse("InitiateAuth")
	}
	return normalize(out.AuthenticationResult, out.ChallengeName, out.Session)
}

// RespondToPasswordChallenge answers NEW_PASSWORD_REQUIRED.
func (c *Client) RespondToPasswordChallenge(
	ctx context.Context,
	username, newPassword, handle string,
) (domainauth.AuthOutcome, error) {
	hash, err := c.secretHash(username)
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	return c.respond(ctx, types.ChallengeNameTypeNewPasswordRequired, handle, map[string]string{
		paramUsername:    username,
		paramNewPassword: newPassword,
		paramSecretHash:  hash,
	})
}

// RespondToMfaChallenge answers SMS_MFA or SOFTWARE_TOKEN_MFA.
func (c *Client) RespondToMfaChallenge(
	ctx context.Context,
	username, code, handle string,
	kind domainauth.ChallengeKind,
) (domainauth.AuthOutcome, error) {
	var codeKey string
	switch kind {
	case domainauth.ChallengeSmsMfa:
		codeKey = paramSmsMfaCode
	case domainauth.ChallengeTotpMfa:
		codeKey = paramSoftwareMfaCode
	default:
		return domainauth.AuthOutcome{}, apperrors.ChallengeMismatchf("unsupported mfa challenge %q", kind)
	}

	hash, err := c.secretHash(username)
	if err != nil {
		return domainauth.AuthOutcome{}, err
	}
	return c.respond(ctx, types.ChallengeNameType(kind), handle, map[string]string{
		paramUsername:   username,
		codeKey:         code,
		paramSecretHash: hash,
	})
}

func (c *Client) respond(
	ctx context.Context,
	name types.ChallengeNameType,
	handle string,
	responses map[string]string,
) (domainauth.AuthOutcome, error) {
	out, err := c.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      name,
		ClientId:           aws.String(c.cfg.ClientID),
		ChallengeResponses: responses,
		Session:            aws.String(handle),
	})
	if err != nil {
		c.logger.DebugContext(ctx, "challenge response rejected",
			"challenge", string(name), "error_code", errorCode(err))
		return domainauth.AuthOutcome{}, classify(err)
	}
	if out == nil {
		return domainauth.AuthOutcome{}, emptyResponse("RespondToAuthChallenge")
	}
	return normalize(out.AuthenticationResult, out.ChallengeName, out.Session)
}

// normalize turns a token result or a named challenge into an AuthOutcome.
func normalize(
	result *types.AuthenticationResultType,
	challenge types.ChallengeNameType,
	session *string,
) (domainauth.AuthOutcome, error) {
	if result != nil {
		return domainauth.Success(domainauth.Tokens{
			IDToken:      aws.ToString(result.IdToken),
			AccessToken:  aws.ToString(result.AccessToken),
			RefreshToken: aws.ToString(result.RefreshToken),
		}), nil
	}
	if challenge == "" {
		return domainauth.AuthOutcome{}, emptyResponse("auth")
	}
	kind := domainauth.ChallengeKind(challenge)
	if !kind.Supported() {
		return domainauth.AuthOutcome{}, apperrors.AuthFailed(
			apperrors.ReasonUnsupportedChallenge,
			fmt.Errorf("challenge %s is not supported", challenge),
		)
	}
	return domainauth.Challenge(kind, aws.ToString(session)), nil
}

// GetMfaStatus reads the user's MFA settings.
func (c *Client) GetMfaStatus(ctx context.Context, accessToken string) (domainauth.MfaStatus, error) {
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return domainauth.MfaStatus{}, classify(err)
	}
	if out == nil {
		return domainauth.MfaStatus{}, emptyResponse("GetUser")
	}
	return domainauth.MfaStatus{
		RegisteredFactors: append([]string(nil), out.UserMFASettingList...),
		PreferredFactor:   aws.ToString(out.PreferredMfaSetting),
	}, nil
}

// BeginTotpEnrollment associates a new software token and returns its shared secret.
func (c *Client) BeginTotpEnrollment(ctx context.Context, accessToken string) (domainauth.TotpSetup, error) {
	out, err := c.api.AssociateSoftwareToken(ctx, &cip.AssociateSoftwareTokenInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return domainauth.TotpSetup{}, classify(err)
	}
	if out == nil || aws.ToString(out.SecretCode) == "" {
		return domainauth.TotpSetup{}, emptyResponse("AssociateSoftwareToken")
	}
	return domainauth.TotpSetup{
		Secret: aws.ToString(out.SecretCode),
		Handle: aws.ToString(out.Session),
	}, nil
}

// VerifyTotpEnrollment verifies the first code from the authenticator app.
func (c *Client) VerifyTotpEnrollment(ctx context.Context, accessToken, userCode, handle string) error {
	in := &cip.VerifySoftwareTokenInput{
		AccessToken: aws.String(accessToken),
		UserCode:    aws.String(userCode),
	}
	if handle != "" {
		in.Session = aws.String(handle)
	}
	if c.cfg.TotpDeviceName != "" {
		in.FriendlyDeviceName = aws.String(c.cfg.TotpDeviceName)
	}
	out, err := c.api.VerifySoftwareToken(ctx, in)
	if err != nil {
		return classify(err)
	}
	if out == nil || out.Status != types.VerifySoftwareTokenResponseTypeSuccess {
		return apperrors.AuthFailed(apperrors.ReasonVerificationFailed, errors.New("software token not verified"))
	}
	return nil
}

// SetPreferredMfaFactor enables factor and marks it preferred.
func (c *Client) SetPreferredMfaFactor(ctx context.Context, accessToken, factor string) error {
	in := &cip.SetUserMFAPreferenceInput{AccessToken: aws.String(accessToken)}
	switch factor {
	case domainauth.FactorTotp:
		in.SoftwareTokenMfaSettings = &types.SoftwareTokenMfaSettingsType{Enabled: true, PreferredMfa: true}
	case domainauth.FactorSms:
		in.SMSMfaSettings = &types.SMSMfaSettingsType{Enabled: true, PreferredMfa: true}
	default:
		return apperrors.ValidationField("factor", fmt.Sprintf("unknown mfa factor %q", factor))
	}
	if _, err := c.api.SetUserMFAPreference(ctx, in); err != nil {
		return classify(err)
	}
	return nil
}

func emptyResponse(op string) error {
	return apperrors.AuthFailed(apperrors.ReasonProviderUnavailable, fmt.Errorf("%s returned an empty response", op))
}
