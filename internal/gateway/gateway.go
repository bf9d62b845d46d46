// Package gateway is the single HTTP front door: it terminates client HTTP,
// authenticates against the identity service, rate-limits, rewrites headers
// and proxies to the downstream services.
package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/orqestra/campaign-hub/internal/config"
	"github.com/orqestra/campaign-hub/internal/pkg/httputil"
	"github.com/orqestra/campaign-hub/internal/service/identity"
)

// route maps a path prefix to a named downstream. Evaluated top to bottom;
// first match wins.
type route struct {
	prefix  string
	service string
}

// defaultRoutes is the deterministic routing table. The empty prefix is the
// catch-all.
var defaultRoutes = []route{
	{"/api/auth", "identity"},
	{"/api/campaigns", "campaigns"},
	{"/api/ai/analyze-piece", "validator"},
	{"/api/ai/generate-text", "validator"},
	{"/api/ai/validations", "validator"},
	{"/api/ai-interactions", "enhancer"},
	{"/api/enhance-objective", "enhancer"},
	{"/api/ai", "enhancer"},
	{"", "campaigns"},
}

var allowedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

// Gateway proxies client traffic to the platform services.
type Gateway struct {
	services        map[string]string
	routes          []route
	tokens          *identity.TokenIssuer
	limiter         *Limiter
	client          *http.Client
	identityTimeout time.Duration
	proxyTimeout    time.Duration
	streamTimeout   time.Duration
	maxBufferedBody int64
	production      bool
	corsOrigins     []string
}

// New builds a gateway from config. The shared JWT secret lets the edge
// reject garbage tokens without a network hop.
func New(cfg *config.Config) (*Gateway, error) {
	tokens, err := identity.NewTokenIssuer(cfg.JWT.Secret, cfg.Identity.AccessTTL())
	if err != nil {
		return nil, err
	}
	identityTimeout := cfg.Gateway.IdentityTimeout()
	if identityTimeout <= 0 {
		identityTimeout = 10 * time.Second
	}
	proxyTimeout := cfg.Gateway.ProxyTimeout()
	if proxyTimeout <= 0 {
		proxyTimeout = 120 * time.Second
	}
	streamTimeout := cfg.Gateway.StreamTimeout()
	if streamTimeout <= 0 {
		streamTimeout = 180 * time.Second
	}
	maxBody := cfg.Gateway.MaxBufferedBodyBytes
	if maxBody <= 0 {
		maxBody = 32 << 20
	}
	return &Gateway{
		services:        cfg.Gateway.Services,
		routes:          defaultRoutes,
		tokens:          tokens,
		limiter:         NewLimiter(cfg.RateLimit),
		client:          &http.Client{},
		identityTimeout: identityTimeout,
		proxyTimeout:    proxyTimeout,
		streamTimeout:   streamTimeout,
		maxBufferedBody: maxBody,
		production:      cfg.IsProduction(),
		corsOrigins:     cfg.Gateway.CORSOrigins,
	}, nil
}

// resolveRoute returns the downstream base URL and service name for a path.
func (g *Gateway) resolveRoute(path string) (base, service string, ok bool) {
	for _, rt := range g.routes {
		if rt.prefix == "" || strings.HasPrefix(path, rt.prefix) {
			base, ok = g.services[rt.service]
			return base, rt.service, ok
		}
	}
	return "", "", false
}

// Handler builds the edge router.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"service": "campaign-hub-gateway"})
	})
	r.Get("/api/health", g.health)
	r.NotFound(g.proxy)
	r.MethodNotAllowed(g.proxy)
	return r
}

// health reports gateway liveness; ?deep=1 probes every downstream.
func (g *Gateway) health(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{"status": "ok", "service": "gateway"}
	if r.URL.Query().Get("deep") == "1" {
		probes := map[string]string{}
		for name, base := range g.services {
			probes[name] = g.probe(r, base)
		}
		out["downstream"] = probes
	}
	httputil.OK(w, out)
}

func (g *Gateway) probe(r *http.Request, base string) string {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, base+"/api/health", nil)
	if err != nil {
		return "error"
	}
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "down"
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "unhealthy"
	}
	return "ok"
}
