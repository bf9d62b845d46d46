package enhancer

import "errors"

// Sentinel errors for the briefing enhancer.
var (
	ErrInteractionNotFound = errors.New("ai interaction not found")
	ErrUnknownField        = errors.New("unknown briefing field")
)
