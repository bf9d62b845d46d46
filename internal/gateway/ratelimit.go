package gateway

import (
	"sync"
	"time"

	"github.com/orqestra/campaign-hub/internal/config"
)

// Limiter is the in-process edge rate limiter: lazily refilled token buckets
// in a concurrent map, one bucket per (client, matched rule).
type Limiter struct {
	cfg     config.RateLimitConfig
	buckets sync.Map // key string -> *bucket
	now     func() time.Time
}

type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter from the resolved config.
func NewLimiter(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{cfg: cfg, now: time.Now}
}

// Allow consumes one token for the client on the rule matching (path,
// service). When limiting is disabled every call is allowed.
func (l *Limiter) Allow(clientKey, path, service string) bool {
	if !l.cfg.Enabled {
		return true
	}
	rule, ruleKey := l.cfg.Resolve(path, service)
	if rule.Requests <= 0 {
		return true
	}

	key := clientKey + "|" + ruleKey
	v, _ := l.buckets.LoadOrStore(key, &bucket{tokens: float64(rule.Requests), last: l.now()})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		rate := float64(rule.Requests) / rule.Window().Seconds()
		b.tokens += elapsed * rate
		if max := float64(rule.Requests); b.tokens > max {
			b.tokens = max
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
