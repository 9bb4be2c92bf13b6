package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automsp/portal-server-go/internal/httputil"
	"github.com/automsp/portal-server-go/internal/metrics"
	"github.com/automsp/portal-server-go/internal/middleware"
	"github.com/automsp/portal-server-go/internal/model"
	"github.com/automsp/portal-server-go/internal/service"
	"github.com/automsp/portal-server-go/internal/testutil"
)

const (
	testPortalOrigin = "https://portal.example.com"
	testStaffUserID  = "8b0b5a3e-4f4c-4f59-9a55-3d0b6f2a1c11"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type routerEnv struct {
	handler  http.Handler
	auth     *service.StaffAuthenticator
	clientID string
}

func newRouterEnv(t *testing.T, burst int, trustedProxies ...netip.Prefix) *routerEnv {
	t.Helper()

	store := testutil.NewMemStore()
	orgID, clientID := store.AddClient("Acme Corp")
	store.AddMember(testStaffUserID, orgID, model.RoleAdmin)

	m := metrics.New()
	auth := service.NewStaffAuthenticator("router-test-secret-0123456789abcdef", "")
	authz := service.NewAuthorizer(store.Clients(), store.Memberships())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := newRouter(routerDeps{
		trustedProxies: trustedProxies,
		metrics:        m,
		db:             okPinger{},
		access: service.NewPortalAccessService(
			store.PortalTokens(), store.TicketRepo(), service.NewMemoryRateLimiter(),
			service.PortalAccessLimits{Validate: 100, Submit: 10, Window: time.Minute}, m,
		),
		tokens:      service.NewPortalTokenService(store, store.PortalTokens(), store.Clients(), authz, m, testPortalOrigin, 30),
		staffAuth:   auth,
		origins:     httputil.NewOriginPolicy([]string{testPortalOrigin}, false),
		portalLimit: middleware.NewIPRateLimitMiddleware(ctx, 0.001, burst, "portal"),
		staffLimit:  middleware.NewIPRateLimitMiddleware(ctx, 0.001, burst, "staff"),
	})

	return &routerEnv{handler: h, auth: auth, clientID: clientID}
}

func (e *routerEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	env := newRouterEnv(t, 50)

	rec := env.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestRouter_Preflight(t *testing.T) {
	env := newRouterEnv(t, 50)

	req := httptest.NewRequest(http.MethodOptions, "/customer-portal/validate", nil)
	req.Header.Set("Origin", testPortalOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := env.serve(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testPortalOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestRouter_IssueThenValidate(t *testing.T) {
	env := newRouterEnv(t, 50)

	staffToken, err := env.auth.Sign(testStaffUserID, "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/generate-portal-token",
		strings.NewReader(`{"client_id":"`+env.clientID+`","email":"Jane@Acme.com"}`))
	req.Header.Set("Authorization", "Bearer "+staffToken)
	req.Header.Set("Origin", testPortalOrigin)
	rec := env.serve(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var issued struct {
		Token     string `json:"token"`
		PortalURL string `json:"portal_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	assert.True(t, strings.HasPrefix(issued.PortalURL, testPortalOrigin+"/customer-portal/login?token="))

	rec = env.serve(httptest.NewRequest(http.MethodPost, "/customer-portal/validate",
		strings.NewReader(`{"token":"`+issued.Token+`"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"jane@acme.com"`)

	rec = env.serve(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "portal_tokens_issued_total")
	assert.Contains(t, body, `route="/customer-portal/validate"`)
}

func TestRouter_StaffRoutesRequireAuth(t *testing.T) {
	env := newRouterEnv(t, 50)

	rec := env.serve(httptest.NewRequest(http.MethodPost, "/generate-portal-token",
		strings.NewReader(`{"client_id":"`+env.clientID+`","email":"a@b.com"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.serve(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_PortalIPThrottle(t *testing.T) {
	env := newRouterEnv(t, 2)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/customer-portal/validate", strings.NewReader(`{"token":"short"}`))
		req.RemoteAddr = "203.0.113.7:5555"
		codes = append(codes, env.serve(req).Code)
	}

	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, codes)
}

func TestRouter_PortalIPThrottleIgnoresForgedForwardedFor(t *testing.T) {
	env := newRouterEnv(t, 2)

	throttled := 0
	for i := range 20 {
		req := httptest.NewRequest(http.MethodPost, "/customer-portal/validate", strings.NewReader(`{"token":"short"}`))
		req.RemoteAddr = "203.0.113.7:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.8.0.%d", i))
		if env.serve(req).Code == http.StatusTooManyRequests {
			throttled++
		}
	}

	assert.Equal(t, 18, throttled)
}

func TestRouter_PortalIPThrottleBehindTrustedProxy(t *testing.T) {
	env := newRouterEnv(t, 2, netip.MustParsePrefix("10.0.0.0/8"))

	send := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/customer-portal/validate", strings.NewReader(`{"token":"short"}`))
		req.RemoteAddr = "10.0.0.2:5555"
		req.Header.Set("X-Forwarded-For", client)
		return env.serve(req).Code
	}

	assert.Equal(t, http.StatusBadRequest, send("198.51.100.1"))
	assert.Equal(t, http.StatusBadRequest, send("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1"))
	assert.Equal(t, http.StatusBadRequest, send("198.51.100.2"), "each forwarded client has its own bucket")
	assert.Equal(t, http.StatusTooManyRequests, send("1.2.3.4, 198.51.100.1"), "spoofed leftmost hops are skipped")
}
