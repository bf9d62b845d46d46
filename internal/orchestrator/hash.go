package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/orqestra/campaign-hub/internal/domain"
)

// contentHash fingerprints the resolved content for the validation cache key.
// SMS hashes the body; PUSH hashes title NUL body; EMAIL hashes the HTML
// bytes; APP hashes the image bytes and appends the commercial space so each
// placement keys its own row.
func contentHash(r *resolved) string {
	h := sha256.New()
	switch r.req.Channel {
	case domain.ChannelSMS:
		h.Write([]byte(r.req.Content.Body))
	case domain.ChannelPush:
		h.Write([]byte(r.req.Content.Title))
		h.Write([]byte{0})
		h.Write([]byte(r.req.Content.Body))
	case domain.ChannelEmail:
		h.Write(r.html)
	case domain.ChannelApp:
		h.Write(r.image)
		return hex.EncodeToString(h.Sum(nil)) + r.req.Content.CommercialSpace
	}
	return hex.EncodeToString(h.Sum(nil))
}
