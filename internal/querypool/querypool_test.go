package querypool

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodns-go/nodns/internal/cache"
	"github.com/nodns-go/nodns/internal/idpool"
	"github.com/nodns-go/nodns/internal/wire"
)

type fakeSender struct {
	downstream []wire.Packet
	upstream   []wire.Packet
}

func (f *fakeSender) Send(addr *net.UDPAddr, msg wire.Packet) error {
	f.downstream = append(f.downstream, msg)
	return nil
}

func (f *fakeSender) Forward(msg wire.Packet) error {
	f.upstream = append(f.upstream, msg)
	return nil
}

// fakeTimers lets tests fire timeout callbacks deterministically instead of
// sleeping for the real 5-second window.
type fakeTimers struct {
	pending []func()
}

func (f *fakeTimers) after(d time.Duration, fn func()) *time.Timer {
	f.pending = append(f.pending, fn)
	return time.NewTimer(time.Hour) // never fires on its own in tests
}

func (f *fakeTimers) fireAll() {
	pending := f.pending
	f.pending = nil
	for _, fn := range pending {
		fn()
	}
}

func newTestPool(t *testing.T, size int) (*Pool, *fakeSender, *fakeTimers) {
	t.Helper()
	sender := &fakeSender{}
	timers := &fakeTimers{}
	p := New(size, cache.New(cache.DefaultSize), idpool.New(), sender, nil)
	p.afterFunc = timers.after
	return p, sender, timers
}

func clientAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

func queryA(id uint16, name string) wire.Packet {
	n := wire.NormalizeName(name)
	h := wire.Header{ID: id, QDCount: 1}
	h.SetRD(true)
	return wire.Packet{
		Header:    h,
		Questions: []wire.Question{{Name: n, Type: uint16(wire.TypeA), Class: uint16(wire.ClassIN)}},
	}
}

func TestCacheMissDispatchesUpstreamWithNewID(t *testing.T) {
	p, sender, _ := newTestPool(t, DefaultSize)
	req := queryA(0xABCD, "example.org.")

	require.NoError(t, p.Insert(clientAddr(), req))

	require.Len(t, sender.upstream, 1)
	assert.NotEqual(t, uint16(0xABCD), sender.upstream[0].Header.ID)
	assert.Equal(t, "example.org.", sender.upstream[0].Questions[0].Name)
	assert.Empty(t, sender.downstream)
}

func TestFinishDeliversReplyWithOriginalID(t *testing.T) {
	p, sender, _ := newTestPool(t, DefaultSize)
	req := queryA(0xABCD, "example.org.")
	require.NoError(t, p.Insert(clientAddr(), req))

	upstreamID := sender.upstream[0].Header.ID
	reply := wire.Packet{
		Header:    wire.Header{ID: upstreamID, QDCount: 1, ANCount: 1},
		Questions: []wire.Question{{Name: "example.org.", Type: uint16(wire.TypeA)}},
		Answers:   []wire.Record{{Name: "example.org.", Type: uint16(wire.TypeA), TTL: 300, Data: []byte{5, 6, 7, 8}}},
	}
	reply.Header.SetQR(true)

	require.NoError(t, p.Finish(reply))
	require.Len(t, sender.downstream, 1)
	assert.Equal(t, uint16(0xABCD), sender.downstream[0].Header.ID)
	assert.True(t, sender.downstream[0].Header.QR())
}

func TestSubsequentQueryHitsLRUAfterFinish(t *testing.T) {
	p, sender, _ := newTestPool(t, DefaultSize)
	req := queryA(0xABCD, "example.org.")
	require.NoError(t, p.Insert(clientAddr(), req))
	upstreamID := sender.upstream[0].Header.ID
	reply := wire.Packet{
		Header:    wire.Header{ID: upstreamID, QDCount: 1, ANCount: 1},
		Questions: []wire.Question{{Name: "example.org.", Type: uint16(wire.TypeA)}},
		Answers:   []wire.Record{{Name: "example.org.", Type: uint16(wire.TypeA), TTL: 300, Data: []byte{5, 6, 7, 8}}},
	}
	require.NoError(t, p.Finish(reply))

	req2 := queryA(0x0002, "example.org.")
	require.NoError(t, p.Insert(clientAddr(), req2))

	assert.Len(t, sender.upstream, 1, "second identical query must hit the cache, not forward again")
	require.Len(t, sender.downstream, 2)
	assert.Equal(t, uint16(0x0002), sender.downstream[1].Header.ID)
}

func TestUpstreamTimeoutFreesSlotAndReissuesWithNewID(t *testing.T) {
	p, sender, timers := newTestPool(t, DefaultSize)
	req := queryA(0x4242, "timeout.test.")
	require.NoError(t, p.Insert(clientAddr(), req))
	firstUpstreamID := sender.upstream[0].Header.ID

	timers.fireAll()
	assert.Empty(t, sender.downstream, "no client reply on timeout")

	req2 := queryA(0x4242, "timeout.test.")
	require.NoError(t, p.Insert(clientAddr(), req2))
	require.Len(t, sender.upstream, 2)
	assert.NotEqual(t, firstUpstreamID, sender.upstream[1].Header.ID)
}

func TestUpstreamMismatchDropsSilentlyAndDoesNotCache(t *testing.T) {
	p, sender, _ := newTestPool(t, DefaultSize)
	req := queryA(0x0001, "a.test.")
	require.NoError(t, p.Insert(clientAddr(), req))
	upstreamID := sender.upstream[0].Header.ID

	mismatched := wire.Packet{
		Header:    wire.Header{ID: upstreamID, QDCount: 1, ANCount: 1},
		Questions: []wire.Question{{Name: "b.test.", Type: uint16(wire.TypeA)}},
		Answers:   []wire.Record{{Name: "b.test.", Type: uint16(wire.TypeA), TTL: 300, Data: []byte{1, 1, 1, 1}}},
	}
	require.NoError(t, p.Finish(mismatched))
	assert.Empty(t, sender.downstream)

	req2 := queryA(0x0002, "a.test.")
	require.NoError(t, p.Insert(clientAddr(), req2))
	assert.Len(t, sender.upstream, 2, "a.test. was not cached, so it must forward again")
}

func TestQueryPoolFullDropsNewQuery(t *testing.T) {
	p, _, _ := newTestPool(t, 1)
	require.NoError(t, p.Insert(clientAddr(), queryA(1, "first.test.")))
	err := p.Insert(clientAddr(), queryA(2, "second.test."))
	assert.Error(t, err)
}
