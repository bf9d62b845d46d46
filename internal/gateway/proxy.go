package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/orqestra/campaign-hub/internal/pkg/apperr"
	"github.com/orqestra/campaign-hub/internal/pkg/headerenc"
	"github.com/orqestra/campaign-hub/internal/pkg/httputil"
	"github.com/orqestra/campaign-hub/internal/pkg/logger"
)

// hopByHop headers never cross the proxy in either direction.
var hopByHop = []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Upgrade",
	"Proxy-Authenticate", "Proxy-Authorization", "Te", "Trailer"}

// proxy is the catch-all edge handler.
func (g *Gateway) proxy(w http.ResponseWriter, r *http.Request) {
	if !allowedMethods[r.Method] {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// Preflight and bare OPTIONS never reach a downstream.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	base, service, ok := g.resolveRoute(r.URL.Path)
	if !ok {
		httputil.FromError(w, apperr.Newf(apperr.UpstreamUnavailable, "service %s not configured", service))
		return
	}

	if !g.limiter.Allow(clientKey(r), r.URL.Path, service) {
		httputil.FromError(w, apperr.New(apperr.RateLimited, "rate limit exceeded"))
		return
	}

	var identityHeaders http.Header
	if !authExempt(r) {
		u, err := g.authenticate(r)
		if err != nil {
			httputil.FromError(w, err)
			return
		}
		identityHeaders = http.Header{}
		identityHeaders.Set("X-User-Id", headerenc.Encode(u.ID))
		identityHeaders.Set("X-User-Email", headerenc.Encode(u.Email))
		identityHeaders.Set("X-User-Role", headerenc.Encode(string(u.Role)))
		identityHeaders.Set("X-User-Is-Active", fmt.Sprintf("%t", u.IsActive))
	}

	timeout := g.proxyTimeout
	if strings.HasPrefix(r.URL.Path, "/api/ai/generate-text") {
		timeout = g.streamTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	out, err := g.buildOutbound(ctx, r, base, identityHeaders)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	resp, err := g.client.Do(out)
	if err != nil {
		if clientCancelled(r, err) {
			// The client went away; nothing sensible to write.
			return
		}
		httputil.FromError(w, classifyTransportError(err, service))
		return
	}
	defer resp.Body.Close()

	g.writeResponse(w, r, resp)
}

// buildOutbound clones the inbound request toward the downstream: same
// method, path and query, filtered headers, stamped identity.
func (g *Gateway) buildOutbound(ctx context.Context, r *http.Request, base string, identityHeaders http.Header) (*http.Request, error) {
	out, err := http.NewRequestWithContext(ctx, r.Method, base+r.URL.RequestURI(), r.Body)
	if err != nil {
		return nil, fmt.Errorf("build outbound request: %w", err)
	}
	out.ContentLength = r.ContentLength

	for name, vals := range r.Header {
		if isHopByHop(name) || strings.HasPrefix(http.CanonicalHeaderKey(name), "X-User-") {
			// Client-supplied identity headers are never trusted.
			continue
		}
		for _, v := range vals {
			out.Header.Add(name, v)
		}
	}
	for name, vals := range identityHeaders {
		out.Header[name] = vals
	}
	out.Header.Set("X-Forwarded-For", clientKey(r))
	return out, nil
}

// writeResponse relays the downstream response: headers minus hop-by-hop,
// cookies re-emitted as a list, body streamed or buffered.
func (g *Gateway) writeResponse(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	for name, vals := range resp.Header {
		if isHopByHop(name) || http.CanonicalHeaderKey(name) == "Set-Cookie" {
			continue
		}
		for _, v := range vals {
			w.Header().Add(name, v)
		}
	}
	// Set-Cookie stays a list; each directive re-emitted, Secure forced in
	// production only.
	for _, raw := range resp.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", g.rewriteCookie(raw))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		g.streamBody(w, r, resp)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBufferedBody+1))
	if err != nil {
		if clientCancelled(r, err) {
			return
		}
		httputil.FromError(w, classifyTransportError(err, "downstream read"))
		return
	}
	if int64(len(body)) > g.maxBufferedBody {
		logger.Error("downstream body exceeds buffered ceiling",
			"path", r.URL.Path, "limit", fmt.Sprintf("%d", g.maxBufferedBody))
		httputil.FromError(w, apperr.New(apperr.UpstreamOther, "downstream response too large"))
		return
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

// streamBody forwards an SSE body chunk-by-chunk. On a mid-stream upstream
// failure the gateway appends an error frame and closes.
func (g *Gateway) streamBody(w http.ResponseWriter, r *http.Request, resp *http.Response) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return // client went away
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			if clientCancelled(r, err) {
				return
			}
			fmt.Fprintf(w, "event: error\ndata: {\"error\":%q}\n\n", "upstream stream failed")
			if flusher != nil {
				flusher.Flush()
			}
			return
		}
	}
}

// rewriteCookie re-emits one Set-Cookie directive. Unknown attributes pass
// through verbatim; Secure is appended in production when absent.
func (g *Gateway) rewriteCookie(raw string) string {
	if !g.production {
		return raw
	}
	for _, part := range strings.Split(raw, ";") {
		if strings.EqualFold(strings.TrimSpace(part), "Secure") {
			return raw
		}
	}
	return raw + "; Secure"
}

func isHopByHop(name string) bool {
	c := http.CanonicalHeaderKey(name)
	for _, h := range hopByHop {
		if c == h {
			return true
		}
	}
	return false
}

// clientKey identifies the caller for rate limiting: first X-Forwarded-For
// entry, falling back to the peer address.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientCancelled(r *http.Request, err error) bool {
	return r.Context().Err() != nil && errors.Is(err, context.Canceled)
}
