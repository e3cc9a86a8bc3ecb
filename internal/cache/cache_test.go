package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodns-go/nodns/internal/wire"
)

func aRecordMessage(name string, ttl uint32, ip [4]byte) wire.Packet {
	n := wire.NormalizeName(name)
	return wire.Packet{
		Questions: []wire.Question{{Name: n, Type: uint16(wire.TypeA), Class: uint16(wire.ClassIN)}},
		Answers: []wire.Record{
			{Name: n, Type: uint16(wire.TypeA), Class: uint16(wire.ClassIN), TTL: ttl, Data: ip[:]},
		},
	}
}

func TestInsertThenQueryHits(t *testing.T) {
	c := New(DefaultSize)
	require.NoError(t, c.Insert(aRecordMessage("example.org.", 300, [4]byte{1, 2, 3, 4})))

	b, ok := c.Query(wire.Question{Name: "example.org.", Type: uint16(wire.TypeA)})
	require.True(t, ok)
	require.Len(t, b.RR, 1)
	ip, ok := b.RR[0].IPv4()
	assert.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)
}

func TestQueryMissReturnsFalse(t *testing.T) {
	c := New(DefaultSize)
	_, ok := c.Query(wire.Question{Name: "nowhere.test.", Type: uint16(wire.TypeA)})
	assert.False(t, ok)
}

func TestLRUSizeBound(t *testing.T) {
	c := New(3)
	for i := 0; i < 10; i++ {
		name := string(rune('a'+i)) + ".test."
		require.NoError(t, c.Insert(aRecordMessage(name, 300, [4]byte{1, 1, 1, byte(i)})))
	}
	assert.LessOrEqual(t, c.lru.Len(), 3)
}

func TestLRUHitMovesToTail(t *testing.T) {
	c := New(3)
	require.NoError(t, c.Insert(aRecordMessage("a.test.", 300, [4]byte{1, 1, 1, 1})))
	require.NoError(t, c.Insert(aRecordMessage("b.test.", 300, [4]byte{1, 1, 1, 2})))
	require.NoError(t, c.Insert(aRecordMessage("c.test.", 300, [4]byte{1, 1, 1, 3})))

	_, ok := c.Query(wire.Question{Name: "a.test.", Type: uint16(wire.TypeA)})
	require.True(t, ok)

	tail := c.lru.Back().Value.(*RecordBundle)
	assert.Equal(t, "a.test.", tail.RR[0].Name)
}

func TestTTLMonotonicityExpiredEntryIsGone(t *testing.T) {
	c := New(DefaultSize)
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }
	require.NoError(t, c.Insert(aRecordMessage("stale.test.", 10, [4]byte{9, 9, 9, 9})))

	c.now = func() time.Time { return base.Add(11 * time.Second) }
	_, ok := c.Query(wire.Question{Name: "stale.test.", Type: uint16(wire.TypeA)})
	assert.False(t, ok)
}

func TestSeedHostsShieldMarker(t *testing.T) {
	c := New(DefaultSize)
	require.NoError(t, c.SeedHosts([]HostEntry{
		{Domain: "ads.example.com", IPText: "0.0.0.0"},
		{Domain: "home.lan", IPText: "192.168.1.10"},
	}))

	shield, ok := c.Query(wire.Question{Name: "ads.example.com.", Type: uint16(wire.TypeA)})
	require.True(t, ok)
	assert.True(t, shield.RR[0].IsShield())
	assert.Equal(t, wire.TTLNever, shield.RR[0].TTL)

	static, ok := c.Query(wire.Question{Name: "home.lan.", Type: uint16(wire.TypeA)})
	require.True(t, ok)
	ip, _ := static.RR[0].IPv4()
	assert.Equal(t, "192.168.1.10", ip)
	assert.Equal(t, wire.TTLNever, static.RR[0].TTL)
}

func TestSeedHostsNeverExpires(t *testing.T) {
	c := New(DefaultSize)
	c.now = func() time.Time { return time.Unix(0, 0) }
	require.NoError(t, c.SeedHosts([]HostEntry{{Domain: "home.lan", IPText: "192.168.1.10"}}))

	c.now = func() time.Time { return time.Unix(1_000_000_000, 0) }
	_, ok := c.Query(wire.Question{Name: "home.lan.", Type: uint16(wire.TypeA)})
	assert.True(t, ok)
}
