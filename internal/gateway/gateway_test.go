package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/pkg/headerenc"
	"github.com/orqestra/campaign-hub/internal/service/identity"
)

const testSecret = "gateway-test-secret"

func mintToken(t *testing.T) string {
	t.Helper()
	issuer, err := identity.NewTokenIssuer(testSecret, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := issuer.MintAccess("ana@orqestra.com.br")
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// identityStub serves /api/auth/me with a fixed user.
func identityStub(t *testing.T, email string, active bool, calls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}
		if r.URL.Path != "/api/auth/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "u-1", "email": email, "role": "marketing_manager", "is_active": active,
		})
	}))
}

func newTestGateway(t *testing.T, services map[string]string, rl config.RateLimitConfig, prod bool) *Gateway {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.Identity.AccessTTLMinutes = 15
	cfg.Gateway.Services = services
	cfg.Gateway.ProxyTimeoutSeconds = 2
	cfg.Gateway.StreamTimeoutSeconds = 5
	cfg.Gateway.MaxBufferedBodyBytes = 1 << 20
	cfg.RateLimit = rl
	if prod {
		cfg.Environment = "production"
	}
	g, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestIdentityHeadersEncoded(t *testing.T) {
	idSrv := identityStub(t, "josé@email.com", true, nil)
	defer idSrv.Close()

	var got http.Header
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer engine.Close()

	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "campaigns": engine.URL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t))
	// A spoofed identity header must never survive the edge.
	req.Header.Set("X-User-Role", "business_analyst")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if v := got.Get("X-User-Email"); v != "base64:am9zw6lAZW1haWwuY29t" {
		t.Errorf("X-User-Email = %q", v)
	}
	if decoded := headerenc.Decode(got.Get("X-User-Email")); decoded != "josé@email.com" {
		t.Errorf("decoded email = %q", decoded)
	}
	if v := got.Get("X-User-Role"); v != "marketing_manager" {
		t.Errorf("X-User-Role = %q, spoofed value survived or injection failed", v)
	}
	if v := got.Get("X-User-Is-Active"); v != "true" {
		t.Errorf("X-User-Is-Active = %q", v)
	}
}

func TestMissingTokenIs401WithChallenge(t *testing.T) {
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("downstream must not be called")
	}))
	defer engine.Close()

	g := newTestGateway(t, map[string]string{"campaigns": engine.URL, "identity": engine.URL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/campaigns")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") != "Bearer" {
		t.Error("missing WWW-Authenticate challenge")
	}
}

func TestInactiveUserIs403(t *testing.T) {
	idSrv := identityStub(t, "ana@email.com", false, nil)
	defer idSrv.Close()
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("downstream must not be called")
	}))
	defer engine.Close()

	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "campaigns": engine.URL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	var downstream int64
	idSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&downstream, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer idSrv.Close()

	rl := config.RateLimitConfig{
		Enabled: true,
		Global:  config.RateLimitRule{Requests: 1000, Per: "minute"},
		Paths: map[string]config.RateLimitRule{
			"/api/auth/login": {Requests: 10, Per: "minute"},
		},
	}
	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "campaigns": idSrv.URL}, rl, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	statuses := make([]int, 0, 11)
	for i := 0; i < 11; i++ {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/auth/login", strings.NewReader(`{}`))
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}

	for i := 0; i < 10; i++ {
		if statuses[i] == http.StatusTooManyRequests {
			t.Fatalf("request %d already limited", i+1)
		}
	}
	if statuses[10] != http.StatusTooManyRequests {
		t.Fatalf("11th status = %d, want 429", statuses[10])
	}
	if n := atomic.LoadInt64(&downstream); n != 10 {
		t.Errorf("downstream calls = %d, want 10 (429 must not proxy)", n)
	}
}

func TestOptionsShortCircuits(t *testing.T) {
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("OPTIONS must not reach the downstream")
	}))
	defer engine.Close()

	g := newTestGateway(t, map[string]string{"campaigns": engine.URL, "identity": engine.URL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/campaigns", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSetCookieListPreservedAndSecured(t *testing.T) {
	idSrv := identityStub(t, "ana@email.com", true, nil)
	defer idSrv.Close()
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Add("Set-Cookie", "access_token=abc; Path=/; HttpOnly; SameSite=Lax")
		w.Header().Add("Set-Cookie", "refresh_token=def; Path=/; HttpOnly; Custom-Ext=1")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
	}))
	defer engine.Close()

	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "campaigns": engine.URL}, config.RateLimitConfig{}, true)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cookies := resp.Header.Values("Set-Cookie")
	if len(cookies) != 2 {
		t.Fatalf("Set-Cookie count = %d, want 2: %v", len(cookies), cookies)
	}
	for _, c := range cookies {
		if !strings.Contains(c, "Secure") {
			t.Errorf("production cookie missing Secure: %q", c)
		}
	}
	if !strings.Contains(cookies[1], "Custom-Ext=1") {
		t.Errorf("unknown directive dropped: %q", cookies[1])
	}
}

func TestUpstreamDownIs503(t *testing.T) {
	idSrv := identityStub(t, "ana@email.com", true, nil)
	defer idSrv.Close()

	// A closed port: the dial fails immediately.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "campaigns": deadURL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestUpstreamTimeoutIs504(t *testing.T) {
	idSrv := identityStub(t, "ana@email.com", true, nil)
	defer idSrv.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(3 * time.Second)
	}))
	defer slow.Close()

	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "campaigns": slow.URL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/campaigns", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", resp.StatusCode)
	}
}

func TestSSEStreamForwarded(t *testing.T) {
	idSrv := identityStub(t, "ana@email.com", true, nil)
	defer idSrv.Close()
	sse := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		f := w.(http.Flusher)
		fmt.Fprint(w, "data: chunk-1\n\n")
		f.Flush()
		fmt.Fprint(w, "data: chunk-2\n\n")
		f.Flush()
	}))
	defer sse.Close()

	g := newTestGateway(t, map[string]string{"identity": idSrv.URL, "validator": sse.URL, "campaigns": sse.URL}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/ai/generate-text", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+mintToken(t))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := resp.Header.Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}
	body := make([]byte, 4096)
	n, _ := resp.Body.Read(body)
	total := string(body[:n])
	for n > 0 {
		n, _ = resp.Body.Read(body)
		total += string(body[:n])
	}
	if !strings.Contains(total, "chunk-1") || !strings.Contains(total, "chunk-2") {
		t.Errorf("stream body = %q", total)
	}
}

func TestRoutingTable(t *testing.T) {
	g := newTestGateway(t, map[string]string{
		"identity": "http://id", "campaigns": "http://camp",
		"validator": "http://val", "enhancer": "http://enh",
	}, config.RateLimitConfig{}, false)

	cases := map[string]string{
		"/api/auth/login":        "http://id",
		"/api/campaigns/c-1":     "http://camp",
		"/api/ai/analyze-piece":  "http://val",
		"/api/ai/generate-text":  "http://val",
		"/api/ai-interactions/1": "http://enh",
		"/api/enhance-objective": "http://enh",
		"/api/ai/other":          "http://enh",
		"/api/anything-else":     "http://camp",
	}
	for path, want := range cases {
		base, _, ok := g.resolveRoute(path)
		if !ok || base != want {
			t.Errorf("route(%s) = %q, want %q", path, base, want)
		}
	}
}

func TestMethodAllowList(t *testing.T) {
	g := newTestGateway(t, map[string]string{"campaigns": "http://camp", "identity": "http://id"}, config.RateLimitConfig{}, false)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	req, _ := http.NewRequest("TRACE", srv.URL+"/api/campaigns", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
