// Package profileapi fetches the signed-in user's profile from the backend API
// with the session's access token as a bearer credential.
package profileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	apperrors "github.com/target/console-auth/internal/errors"
	"github.com/target/console-auth/internal/ports"
)

const (
	mePath            = "/api/v1/me"
	defaultTimeout    = 10 * time.Second
	maxResponseBytes  = 1 << 20
	DefaultRolesExpr  = "organizationRoles || data.organizationRoles || `[]`"
	DefaultRecentExpr = "recentOrganizationId || data.recentOrganizationId"
)

// Options configures the Client.
type Options struct {
	BaseURL string
	// RolesExpr selects the [{organizationId, role}] array from the /me response.
	RolesExpr string
	// RecentExpr selects the recent organization id from the /me response.
	RecentExpr string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client implements ports.ProfileSource over HTTP.
type Client struct {
	base       *url.URL
	rolesExpr  string
	recentExpr string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

var _ ports.ProfileSource = (*Client)(nil)

// New validates options and the JMESPath expressions.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, apperrors.Configuration("profile api base url must be an absolute http(s) url")
	}
	c := &Client{
		base:       base,
		rolesExpr:  opts.RolesExpr,
		recentExpr: opts.RecentExpr,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if c.rolesExpr == "" {
		c.rolesExpr = DefaultRolesExpr
	}
	if c.recentExpr == "" {
		c.recentExpr = DefaultRecentExpr
	}
	for _, expr := range []string{c.rolesExpr, c.recentExpr} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, apperrors.Configuration(fmt.Sprintf("invalid profile JMESPath %q: %v", expr, err))
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// FetchProfile performs GET /api/v1/me.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (domainauth.Profile, error) {
	return c.do(ctx, accessToken, http.MethodGet, nil)
}

// SwitchOrganization performs PATCH /api/v1/me {organizationId} and returns the updated profile.
func (c *Client) SwitchOrganization(ctx context.Context, accessToken, organizationID string) (domainauth.Profile, error) {
	if organizationID == "" {
		return domainauth.Profile{}, apperrors.ValidationField("organizationId", "organization id is required")
	}
	body, err := json.Marshal(map[string]string{"organizationId": organizationID})
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, accessToken, http.MethodPatch, body)
}

func (c *Client) do(ctx context.Context, accessToken, method string, body []byte) (domainauth.Profile, error) {
	if accessToken == "" {
		return domainauth.Profile{}, apperrors.SessionMissing("access token is required for profile requests")
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+mePath, rdr)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.bearerClient(ctx, accessToken).Do(req)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("profile request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("read profile response: %w", err)
	}
	if err := statusError(resp.StatusCode); err != nil {
		c.logger.WarnContext(ctx, "profile request failed", "method", method, "status", resp.StatusCode)
		return domainauth.Profile{}, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domainauth.Profile{}, fmt.Errorf("decode profile response: %w", err)
	}
	return c.extract(doc)
}

// bearerClient wraps the base client so the token is attached by oauth2.Transport.
func (c *Client) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	hc.Timeout = c.httpClient.Timeout
	return hc
}

func (c *Client) extract(doc any) (domainauth.Profile, error) {
	p := domainauth.Profile{FetchedAt: c.now().UTC()}

	rolesVal, err := jmespath.Search(c.rolesExpr, doc)
	if err != nil {
		return p, fmt.Errorf("evaluate roles expression: %w", err)
	}
	if rolesVal != nil {
		items, ok := rolesVal.([]any)
		if !ok {
			return p, errors.New("profile roles expression did not yield an array")
		}
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			org, _ := m["organizationId"].(string)
			role, _ := m["role"].(string)
			if role == "" {
				continue
			}
			p.OrganizationRoles = append(p.OrganizationRoles, domainauth.OrganizationRole{OrganizationID: org, Role: role})
		}
	}

	recentVal, err := jmespath.Search(c.recentExpr, doc)
	if err != nil {
		return p, fmt.Errorf("evaluate recent organization expression: %w", err)
	}
	if s, ok := recentVal.(string); ok {
		p.RecentOrganizationID = s
	}
	return p, nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.AuthFailed(apperrors.ReasonCredentials, fmt.Errorf("profile api returned %d", code))
	case code == http.StatusNotFound:
		return apperrors.NotFound("profile not found")
	case code == http.StatusTooManyRequests:
		return apperrors.AuthFailed(apperrors.ReasonThrottled, fmt.Errorf("profile api returned %d", code))
	case code >= 400 && code < 500:
		return apperrors.Validation(fmt.Sprintf("profile api rejected the request (%d)", code))
	default:
		return apperrors.Wrap(fmt.Errorf("profile api returned %d", code), apperrors.ErrCodeInternal, "profile api unavailable")
	}
}
