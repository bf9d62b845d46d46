package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/orqestra/campaign-hub/internal/domain"
)

func TestPieceKeyLayout(t *testing.T) {
	key := PieceKey("c-1", domain.ChannelEmail, "", "html")
	if !strings.HasPrefix(key, "campaigns/c-1/EMAIL/") || !strings.HasSuffix(key, ".html") {
		t.Errorf("email key = %q", key)
	}

	key = PieceKey("c-1", domain.ChannelApp, "home_banner", "png")
	if !strings.HasPrefix(key, "campaigns/c-1/APP/home_banner/") || !strings.HasSuffix(key, ".png") {
		t.Errorf("app key = %q", key)
	}

	if PieceKey("c-1", domain.ChannelApp, "x", "png") == PieceKey("c-1", domain.ChannelApp, "x", "png") {
		t.Error("keys must be unique per upload")
	}
}

func TestExtFromContentType(t *testing.T) {
	cases := map[string]string{
		"text/html; charset=utf-8": "html",
		"image/png":                "png",
		"image/jpeg":               "jpg",
		"application/octet-stream": "bin",
	}
	for ct, want := range cases {
		if got := ExtFromContentType(ct); got != want {
			t.Errorf("ExtFromContentType(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	if err := m.Put(ctx, "k", "text/html", strings.NewReader("<html></html>")); err != nil {
		t.Fatal(err)
	}
	data, ct, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<html></html>" || ct != "text/html" {
		t.Errorf("got %q %q", data, ct)
	}
	if _, _, err := m.Get(ctx, "missing"); err == nil {
		t.Error("expected miss")
	}
}
