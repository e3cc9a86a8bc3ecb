package ratelimit

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(Config{Rate: 1, Burst: 3, CleanupInterval: time.Minute, MaxEntries: 10})
	addr := netip.MustParseAddr("203.0.113.9")

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow(addr))
	}
	assert.False(t, l.Allow(addr), "fourth request within the same instant should exceed the burst")
}

func TestAllowTracksAddressesIndependently(t *testing.T) {
	l := New(Config{Rate: 1, Burst: 1, CleanupInterval: time.Minute, MaxEntries: 10})
	a := netip.MustParseAddr("203.0.113.9")
	b := netip.MustParseAddr("198.51.100.2")

	require.True(t, l.Allow(a))
	assert.False(t, l.Allow(a))
	assert.True(t, l.Allow(b), "a distinct source address has its own bucket")
}

func TestZeroConfigDisablesLimiting(t *testing.T) {
	l := New(Config{})
	addr := netip.MustParseAddr("203.0.113.9")
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow(addr))
	}
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *Limiter
	assert.True(t, l.Allow(netip.MustParseAddr("203.0.113.9")))
}

func TestCleanupEvictsStaleEntries(t *testing.T) {
	clock := time.Now()
	l := New(Config{Rate: rate.Limit(1), Burst: 1, CleanupInterval: time.Second, MaxEntries: 10})
	l.now = func() time.Time { return clock }

	addr := netip.MustParseAddr("203.0.113.9")
	require.True(t, l.Allow(addr))
	l.mu.Lock()
	_, tracked := l.buckets[addr]
	l.mu.Unlock()
	require.True(t, tracked)

	clock = clock.Add(2 * time.Second)
	// A different address triggers the cleanup pass and should not itself
	// be evicted by it.
	other := netip.MustParseAddr("198.51.100.2")
	require.True(t, l.Allow(other))

	l.mu.Lock()
	_, stillTracked := l.buckets[addr]
	l.mu.Unlock()
	assert.False(t, stillTracked, "entry idle past CleanupInterval should be evicted")
}
