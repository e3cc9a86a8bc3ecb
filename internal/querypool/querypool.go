// Package querypool implements the query pool (C7): the in-flight table of
// client queries, their upstream dispatch, timeout handling, and response
// correlation (§4.5). It is the orchestration point that ties the cache and
// the ID pool together; the relay package (C8) only feeds it decoded
// packets and supplies the send callbacks.
package querypool

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/nodns-go/nodns/internal/cache"
	"github.com/nodns-go/nodns/internal/idpool"
	"github.com/nodns-go/nodns/internal/metrics"
	"github.com/nodns-go/nodns/internal/ring"
	"github.com/nodns-go/nodns/internal/wire"
)

// DefaultSize is QUERY_POOL_MAX_SIZE, the default slot-table capacity.
const DefaultSize = 256

// UpstreamTimeout is the fixed per-query timer (§5): one-shot, per the
// spec's resolved open question on the source's inert repeat interval.
const UpstreamTimeout = 5 * time.Second

// slot is the query slot of §3: the client's address and original
// transaction ID, the owned message copy, and the arm timer. genSlotID
// carries the generation bits in its high part (slotID + k*size for the
// k-th occupant of a given table index), per §3/§9.
type slot struct {
	genSlotID uint32
	originalID uint16
	clientAddr *net.UDPAddr
	msg        wire.Packet
	timer      *time.Timer
}

// Sender transmits an encoded packet. downstream Send calls carry the
// client address the packet should go to; upstream Forward always targets
// the single configured remote resolver.
type Sender interface {
	Send(addr *net.UDPAddr, msg wire.Packet) error
	Forward(msg wire.Packet) error
}

// Pool is the query pool of §4.5.
type Pool struct {
	size      int
	table     []*slot
	free      *ring.Queue
	occupancy int

	cache  *cache.Cache
	ids    *idpool.Pool
	sender Sender
	log    *slog.Logger

	afterFunc func(d time.Duration, f func()) *time.Timer
}

// New constructs a Pool backed by the given cache and ID pool. log may be
// nil, in which case slog.Default() is used.
func New(size int, c *cache.Cache, ids *idpool.Pool, sender Sender, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		size:      size,
		table:     make([]*slot, size),
		free:      ring.NewFilled(size),
		cache:     c,
		ids:       ids,
		sender:    sender,
		log:       log,
		afterFunc: time.AfterFunc,
	}
}

// Full reports whether the slot table is at capacity.
func (p *Pool) Full() bool {
	return p.occupancy == p.size
}

// Occupancy reports the number of slots currently in use.
func (p *Pool) Occupancy() int {
	return p.occupancy
}

// SetAfterFunc overrides the timer constructor used to arm upstream
// timeouts. The relay (§5) uses this to marshal timer fires back onto the
// single event-loop goroutine instead of running them on the runtime timer
// goroutine directly.
func (p *Pool) SetAfterFunc(fn func(d time.Duration, f func()) *time.Timer) {
	p.afterFunc = fn
}

func (p *Pool) index(genSlotID uint32) int {
	return int(genSlotID) % p.size
}

// Insert implements §4.5 insert: allocate a slot for a freshly decoded
// client query, answer immediately on a cache hit, or dispatch upstream and
// arm the timeout on a miss.
func (p *Pool) Insert(clientAddr *net.UDPAddr, msg wire.Packet) error {
	if p.Full() {
		metrics.QueryPoolDropped.Inc()
		return fmt.Errorf("querypool: pool full, dropping query from %s", clientAddr)
	}
	genID, ok := p.free.Pop()
	if !ok {
		metrics.QueryPoolDropped.Inc()
		return fmt.Errorf("querypool: pool full, dropping query from %s", clientAddr)
	}

	s := &slot{
		genSlotID:  genID,
		originalID: msg.Header.ID,
		clientAddr: clientAddr,
		msg:        msg.Clone(),
	}
	p.table[p.index(genID)] = s
	p.occupancy++
	metrics.QueryPoolOccupancy.Set(float64(p.occupancy))

	if len(msg.Questions) == 0 {
		p.delete(genID)
		return fmt.Errorf("querypool: query from %s has no question", clientAddr)
	}
	q := msg.Questions[0]

	if bundle, hit := p.cache.Query(q); hit {
		p.answerFromCache(s, bundle)
		return nil
	}

	return p.dispatchUpstream(s)
}

// answerFromCache completes a cache-hit slot synchronously, per §4.5.
func (p *Pool) answerFromCache(s *slot, bundle *cache.RecordBundle) {
	reply := s.msg
	reply.Header.SetQR(true)
	if reply.Header.RD() {
		reply.Header.SetRA(true)
	}
	reply.Answers = nil
	reply.Authorities = nil
	reply.Additionals = nil

	if len(bundle.RR) > 0 && bundle.RR[0].IsShield() {
		reply.Header.SetRCode(wire.RCodeNXDomain)
	} else {
		installBundle(&reply, bundle)
	}

	if err := p.sender.Send(s.clientAddr, reply); err != nil {
		p.log.Error("send failure answering from cache", "client", s.clientAddr, "err", err)
	}
	p.delete(s.genSlotID)
}

// installBundle installs a cache-hit bundle's RR chain and section counts
// into reply (§4.5: "install the bundle's RR chain and its
// ancount/nscount/arcount").
func installBundle(reply *wire.Packet, bundle *cache.RecordBundle) {
	an := int(bundle.ANCount)
	ns := int(bundle.NSCount)
	if an > len(bundle.RR) {
		an = len(bundle.RR)
	}
	if an+ns > len(bundle.RR) {
		ns = len(bundle.RR) - an
	}
	reply.Answers = append([]wire.Record(nil), bundle.RR[:an]...)
	reply.Authorities = append([]wire.Record(nil), bundle.RR[an:an+ns]...)
	reply.Additionals = append([]wire.Record(nil), bundle.RR[an+ns:]...)
}

// dispatchUpstream implements the cache-miss branch of §4.5 insert.
func (p *Pool) dispatchUpstream(s *slot) error {
	if p.ids.Full() {
		metrics.IDPoolExhausted.Inc()
		p.log.Error("id pool full, dropping query", "client", s.clientAddr)
		p.delete(s.genSlotID)
		return fmt.Errorf("querypool: id pool full")
	}

	upstreamID, _ := p.ids.Insert(idpool.Entry{PrevID: s.genSlotID})

	forward := s.msg
	forward.Header.ID = upstreamID
	if err := p.sender.Forward(forward); err != nil {
		p.log.Error("send failure forwarding to upstream", "err", err)
	}

	genID := s.genSlotID
	s.timer = p.afterFunc(UpstreamTimeout, func() {
		p.onTimeout(genID)
	})
	return nil
}

// onTimeout is the timer callback of §4.5/§5: first fire deletes the slot.
// A stale fire (the slot was already freed by finish, or reused by a later
// generation) is a no-op because get() re-checks genSlotID.
func (p *Pool) onTimeout(genSlotID uint32) {
	s := p.get(genSlotID)
	if s == nil {
		return
	}
	p.log.Info("upstream query timed out", "client", s.clientAddr)
	metrics.UpstreamTimeouts.Inc()
	p.delete(genSlotID)
}

// Finish implements §4.5 finish: correlate an upstream reply back to its
// client, validate the question matches, optionally cache it, and answer.
func (p *Pool) Finish(reply wire.Packet) error {
	upstreamID := reply.Header.ID
	entry, ok := p.ids.Delete(upstreamID)
	if !ok {
		p.log.Error("upstream reply with unknown transaction id", "id", upstreamID)
		return nil
	}

	genSlotID := entry.PrevID
	s := p.get(genSlotID)
	if s == nil {
		return nil
	}

	if len(reply.Questions) == 0 || len(s.msg.Questions) == 0 || reply.Questions[0].Name != s.msg.Questions[0].Name {
		p.log.Error("upstream reply question mismatch", "client", s.clientAddr)
		p.delete(genSlotID)
		return nil
	}

	out := reply.Clone()
	out.Header.ID = s.originalID

	if out.Header.RCode() == wire.RCodeNoError {
		switch wire.RecordType(s.msg.Questions[0].Type) {
		case wire.TypeA, wire.TypeAAAA, wire.TypeCNAME:
			if err := p.cache.Insert(out); err != nil {
				p.log.Error("cache insert failed", "err", err)
			}
		}
	}

	if err := p.sender.Send(s.clientAddr, out); err != nil {
		p.log.Error("send failure answering from upstream", "client", s.clientAddr, "err", err)
	}
	p.delete(genSlotID)
	return nil
}

// get returns the slot at genSlotID's table index, but only if that exact
// generation still occupies it.
func (p *Pool) get(genSlotID uint32) *slot {
	s := p.table[p.index(genSlotID)]
	if s == nil || s.genSlotID != genSlotID {
		return nil
	}
	return s
}

// Delete implements §4.5 delete: idempotent, stops the timer, frees the
// slot, and pushes the ID back with its generation incremented.
func (p *Pool) Delete(genSlotID uint32) {
	p.delete(genSlotID)
}

func (p *Pool) delete(genSlotID uint32) {
	idx := p.index(genSlotID)
	s := p.table[idx]
	if s == nil || s.genSlotID != genSlotID {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	p.table[idx] = nil
	p.occupancy--
	metrics.QueryPoolOccupancy.Set(float64(p.occupancy))
	p.free.Push(genSlotID + uint32(p.size))
}
