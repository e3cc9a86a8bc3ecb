// Package ratelimit applies a per-source token-bucket admission check
// before a datagram reaches the query pool, protecting the bounded
// 256-slot pool (§4.5) from a single noisy client. Where the teacher
// (HydraDNS) hand-rolls its own token bucket in internal/server/rate_limit.go,
// this uses golang.org/x/time/rate directly for the same algorithm.
package ratelimit

import (
	"net/netip"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures the per-source limiter. Rate and Burst disabled (<= 0)
// makes Allow always return true.
type Config struct {
	Rate            rate.Limit
	Burst           int
	CleanupInterval time.Duration
	MaxEntries      int
}

// DefaultConfig matches the teacher's per-IP defaults (3000 qps, burst 6000).
func DefaultConfig() Config {
	return Config{
		Rate:            3000,
		Burst:           6000,
		CleanupInterval: 60 * time.Second,
		MaxEntries:      65_536,
	}
}

// Limiter tracks one token bucket per source address.
type Limiter struct {
	cfg Config

	mu          sync.Mutex
	buckets     map[netip.Addr]*rate.Limiter
	lastSeen    map[netip.Addr]time.Time
	lastCleanup time.Time
	now         func() time.Time
}

// New constructs a Limiter. A zero-value Rate or Burst disables limiting.
func New(cfg Config) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 60 * time.Second
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1
	}
	return &Limiter{
		cfg:         cfg,
		buckets:     make(map[netip.Addr]*rate.Limiter),
		lastSeen:    make(map[netip.Addr]time.Time),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether a datagram from addr should be admitted.
func (l *Limiter) Allow(addr netip.Addr) bool {
	if l == nil || l.cfg.Rate <= 0 || l.cfg.Burst <= 0 {
		return true
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > l.cfg.CleanupInterval {
		l.cleanupLocked(now)
	}

	b, ok := l.buckets[addr]
	if !ok {
		if len(l.buckets) >= l.cfg.MaxEntries {
			l.cleanupLocked(now)
			if len(l.buckets) >= l.cfg.MaxEntries {
				return false
			}
		}
		b = rate.NewLimiter(l.cfg.Rate, l.cfg.Burst)
		l.buckets[addr] = b
	}
	l.lastSeen[addr] = now
	return b.AllowN(now, 1)
}

func (l *Limiter) cleanupLocked(now time.Time) {
	staleBefore := now.Add(-l.cfg.CleanupInterval)
	for addr, last := range l.lastSeen {
		if !last.After(staleBefore) {
			delete(l.lastSeen, addr)
			delete(l.buckets, addr)
		}
	}
	l.lastCleanup = now
}
