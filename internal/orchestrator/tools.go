package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/orqestra/campaign-hub/internal/pkg/httpretry"
)

// identityHeaders are forwarded verbatim to the content service so the fetch
// runs under the caller's visibility.
var identityHeaders = []string{"X-User-Id", "X-User-Email", "X-User-Role", "X-User-Is-Active"}

// ContentClient fetches stored creative artifacts from the campaign engine.
type ContentClient struct {
	base   string
	client httpretry.HTTPDoer
}

// NewContentClient builds the content tool client. A nil doer gets the
// default retrying client; retries are safe, the fetch is a GET.
func NewContentClient(base string, client httpretry.HTTPDoer) *ContentClient {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 2)
	}
	return &ContentClient{base: strings.TrimRight(base, "/"), client: client}
}

// Fetch returns the artifact body and content type for one piece. fwd carries
// the caller's identity headers.
func (c *ContentClient) Fetch(ctx context.Context, campaignID, pieceID, commercialSpace string, fwd http.Header) ([]byte, string, error) {
	u := fmt.Sprintf("%s/api/campaigns/%s/creative-pieces/%s/content",
		c.base, url.PathEscape(campaignID), url.PathEscape(pieceID))
	if commercialSpace != "" {
		u += "?commercial_space=" + url.QueryEscape(commercialSpace)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	for _, h := range identityHeaders {
		if v := fwd.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("content service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("content service returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("content service read: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// RenderClient turns email HTML into a preview image via the external render
// service. Render failures are survivable; callers degrade to HTML-only.
type RenderClient struct {
	base   string
	client httpretry.HTTPDoer
}

// NewRenderClient builds the render tool client. An empty base disables
// rendering.
func NewRenderClient(base string, client httpretry.HTTPDoer) *RenderClient {
	if client == nil {
		client = httpretry.NewRetryClient(nil, 2)
	}
	return &RenderClient{base: strings.TrimRight(base, "/"), client: client}
}

// Render posts the HTML and returns the rendered image bytes and content type.
func (r *RenderClient) Render(ctx context.Context, html []byte) ([]byte, string, error) {
	if r == nil || r.base == "" {
		return nil, "", fmt.Errorf("render service not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/render", bytes.NewReader(html))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(html)), nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("render service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("render service returned %d", resp.StatusCode)
	}
	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("render service read: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/png"
	}
	return img, ct, nil
}
