// Package headerenc escapes header values that are not byte-clean for
// HTTP/1.1. The gateway stamps authenticated identity into X-User-* headers;
// full names and emails may carry non-ASCII, which some proxies mangle.
// Non-ASCII values travel as "base64:<std-b64(utf-8)>" and downstream
// services decode them back.
package headerenc

import (
	"encoding/base64"
	"strings"
)

const prefix = "base64:"

// Encode returns s unchanged when it is pure printable ASCII, otherwise the
// base64-escaped form. The round trip Decode(Encode(s)) == s holds for all s.
func Encode(s string) string {
	if isCleanASCII(s) {
		return s
	}
	return prefix + base64.StdEncoding.EncodeToString([]byte(s))
}

// Decode reverses Encode. Values without the escape prefix pass through
// unchanged; a malformed base64 payload also passes through rather than
// dropping the header.
func Decode(s string) string {
	if !strings.HasPrefix(s, prefix) {
		return s
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(prefix):])
	if err != nil {
		return s
	}
	return string(raw)
}

// isCleanASCII reports whether every byte is printable ASCII. Control bytes
// force the escape too: they are as unsafe in a header as multibyte UTF-8.
func isCleanASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	// A literal value starting with the prefix would be mis-decoded downstream.
	return !strings.HasPrefix(s, prefix)
}
