package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/target/console-auth/internal/adapters/authroles"
	"github.com/target/console-auth/internal/adapters/devauth"
	domainauth "github.com/target/console-auth/internal/domain/auth"
	authdoubles "github.com/target/console-auth/internal/mocks/auth"
	"github.com/target/console-auth/internal/service"
	"github.com/target/console-auth/internal/tokenclaims"
)

const (
	smsCode      = "654321"
	testPassword = "password1"
)

type testServer struct {
	handler http.Handler
	svc     *service.AuthService
	obs     *authdoubles.RecordingObserver
}

// newTestServer wires the router to an in-memory identity provider. The user "root"
// gets a systemadmin grant; everyone else is an admin in org1.
func newTestServer(t *testing.T, csrf bool) *testServer {
	t.Helper()
	provider, err := devauth.NewProvider(devauth.Config{
		Users: []devauth.User{
			{Username: "plain", Password: testPassword, Email: "plain@example.com"},
			{Username: "root", Password: testPassword},
			{Username: "rotate", Password: testPassword, MustChangePassword: true},
			{Username: "sms", Password: testPassword, SmsCode: smsCode},
		},
		Issuer: "Console",
	})
	require.NoError(t, err)

	source := &authdoubles.StaticProfileSource{
		FetchFunc: func(_ context.Context, accessToken string) (domainauth.Profile, error) {
			claims, err := tokenclaims.Decode(accessToken)
			if err != nil {
				return domainauth.Profile{}, err
			}
			role := "admin"
			if claims["username"] == "root" {
				role = "systemadmin"
			}
			return domainauth.Profile{
				OrganizationRoles: []domainauth.OrganizationRole{
					{OrganizationID: "org1", Role: role},
					{OrganizationID: "org2", Role: "member"},
				},
				RecentOrganizationID: "org1",
			}, nil
		},
	}

	obs := &authdoubles.RecordingObserver{}
	svc := service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Profiles: service.NewProfileLoader(service.ProfileLoaderOptions{
			Source:   source,
			Cache:    authdoubles.NewMemoryProfileCache(),
			CacheTTL: time.Minute,
		}),
		Roles:      authroles.TierMapper{},
		Observer:   obs,
		TotpIssuer: "Console",
	})

	return &testServer{
		handler: NewRouter(RouterServices{
			Auth: svc,
			CSRF: csrf,
			ReadyChecks: []ReadyCheck{
				{Name: "noop", Check: func(context.Context) error { return nil }},
			},
		}),
		svc: svc,
		obs: obs,
	}
}

// client carries cookies between requests like a browser would.
type client struct {
	t       *testing.T
	srv     *testServer
	cookies map[string]*http.Cookie
}

func (s *testServer) client(t *testing.T) *client {
	return &client{t: t, srv: s, cookies: make(map[string]*http.Cookie)}
}

func (c *client) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.srv.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) login(username string) *httptest.ResponseRecorder {
	c.t.Helper()
	return c.do(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": testPassword})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
