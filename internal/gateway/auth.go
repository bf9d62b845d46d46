package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/orqestra/campaign-hub/internal/domain"
	"github.com/orqestra/campaign-hub/internal/pkg/apperr"
)

// skipAuth enumerates the exact (method, path) pairs that bypass
// authentication. Everything else on the proxy path requires a valid token.
var skipAuth = map[string]bool{
	"POST /api/auth/login":    true,
	"POST /api/auth/register": true,
	"POST /api/auth/refresh":  true,
	"GET /api/health":         true,
	"GET /":                   true,
}

func authExempt(r *http.Request) bool {
	return skipAuth[r.Method+" "+r.URL.Path]
}

// authenticate locates the access token (cookie first, then bearer), checks
// signature, expiry and token type locally, then confirms with the identity
// service that the user exists and is active.
func (g *Gateway) authenticate(r *http.Request) (*domain.User, error) {
	token := ""
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		token = c.Value
	}
	if token == "" {
		if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
			token = strings.TrimPrefix(bearer, "Bearer ")
		}
	}
	if token == "" {
		return nil, apperr.New(apperr.AuthMissing, "access token required")
	}

	if _, err := g.tokens.VerifyAccess(token); err != nil {
		return nil, apperr.Wrap(apperr.AuthInvalid, "access token invalid", err)
	}

	u, err := g.selfDescribe(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.New(apperr.AuthInactive, "account is inactive")
	}
	return u, nil
}

// selfDescribe asks the identity service who the token belongs to.
func (g *Gateway) selfDescribe(ctx context.Context, token string) (*domain.User, error) {
	base, ok := g.services["identity"]
	if !ok {
		return nil, fmt.Errorf("identity service not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.identityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, "identity lookup")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var u domain.User
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, apperr.Wrap(apperr.UpstreamOther, "identity returned an unreadable user", err)
		}
		return &u, nil
	case http.StatusUnauthorized:
		return nil, apperr.New(apperr.AuthInvalid, "access token rejected")
	case http.StatusForbidden:
		return nil, apperr.New(apperr.AuthInactive, "account is inactive")
	default:
		return nil, apperr.Newf(apperr.UpstreamOther, "identity lookup failed with %d", resp.StatusCode)
	}
}

// classifyTransportError maps outbound failures onto the response taxonomy:
// connect failures are 503, deadlines are 504, everything else is 502.
func classifyTransportError(err error, what string) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return apperr.Wrap(apperr.UpstreamTimeout, what+" timed out", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return apperr.Wrap(apperr.UpstreamUnavailable, what+" unreachable", err)
	}
	if strings.Contains(err.Error(), "connection refused") {
		return apperr.Wrap(apperr.UpstreamUnavailable, what+" unreachable", err)
	}
	return apperr.Wrap(apperr.UpstreamOther, what+" failed", err)
}
