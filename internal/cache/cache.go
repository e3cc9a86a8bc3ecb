// Package cache implements the two-tier DNS answer cache (§4.2): an LRU of
// recently served bundles backed by an authoritative map keyed by a hash of
// the question name, the latter also holding permanent host-file entries.
package cache

import (
	"container/list"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/nodns-go/nodns/internal/metrics"
	"github.com/nodns-go/nodns/internal/rbtree"
	"github.com/nodns-go/nodns/internal/wire"
)

// DefaultSize is CACHE_SIZE, the default LRU capacity (§4.2).
const DefaultSize = 300

// Cache is the two-tier structure described in §4.2. It is not safe for
// concurrent use — per §5, all cache mutation happens on the single event
// loop goroutine.
type Cache struct {
	maxLRU int
	lru    *list.List // of *RecordBundle, head = oldest, tail = newest
	tree   *rbtree.Tree[*bucket]
	now    func() time.Time
}

// New constructs a Cache with the given LRU capacity.
func New(maxLRU int) *Cache {
	return &Cache{
		maxLRU: maxLRU,
		lru:    list.New(),
		tree:   rbtree.New[*bucket](),
		now:    time.Now,
	}
}

// hashName computes the BKDR-style 32-bit hash §4.2 specifies:
// h = h*131 + byte, masked to 31 bits.
func hashName(name string) uint32 {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*131 + uint32(name[i])
	}
	return h & 0x7FFFFFFF
}

// Insert stores the answer carried by msg. Preconditions (§4.2): msg has at
// least one question and at least one resource record across its sections.
func (c *Cache) Insert(msg wire.Packet) error {
	if len(msg.Questions) == 0 {
		return fmt.Errorf("cache: insert requires a question")
	}
	all := make([]wire.Record, 0, len(msg.Answers)+len(msg.Authorities)+len(msg.Additionals))
	all = append(all, msg.Answers...)
	all = append(all, msg.Authorities...)
	all = append(all, msg.Additionals...)
	if len(all) == 0 {
		return fmt.Errorf("cache: insert requires at least one resource record")
	}

	minTTL := all[0].TTL
	for _, rr := range all[1:] {
		if rr.TTL < minTTL {
			minTTL = rr.TTL
		}
	}
	expireAt := c.now().Unix() + int64(minTTL)

	base := &RecordBundle{
		RR:       all,
		ANCount:  uint16(len(msg.Answers)),
		NSCount:  uint16(len(msg.Authorities)),
		ARCount:  uint16(len(msg.Additionals)),
		QType:    msg.Questions[0].Type,
		ExpireAt: expireAt,
	}

	c.pushLRU(cloneBundle(base))
	c.insertMap(cloneBundle(base))
	return nil
}

func (c *Cache) pushLRU(b *RecordBundle) {
	if c.lru.Len() >= c.maxLRU {
		c.lru.Remove(c.lru.Front())
	}
	c.lru.PushBack(b)
}

func (c *Cache) insertMap(b *RecordBundle) {
	key := hashName(b.RR[0].Name)
	bk := c.tree.GetOrInsert(key, newBucket)
	bk.append(b)
}

// Query implements §4.2's query operation: scan the LRU first, then the
// authoritative map, returning a deep copy in either case. Callers must not
// mutate the returned bundle.
func (c *Cache) Query(q wire.Question) (*RecordBundle, bool) {
	now := c.now()

	if b, elem := c.scanLRU(q.Name, q.Type, now); b != nil {
		c.lru.MoveToBack(elem)
		metrics.CacheLookups.WithLabelValues("hit_lru").Inc()
		return cloneBundle(b), true
	}

	key := hashName(q.Name)
	bk, ok := c.tree.Get(key)
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	found, empty := bk.findAndPrune(q.Name, q.Type, now)
	if empty {
		c.tree.Delete(key)
	}
	if found == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	cp := cloneBundle(found)
	c.pushLRU(cloneBundle(found))
	metrics.CacheLookups.WithLabelValues("hit_map").Inc()
	return cp, true
}

// scanLRU walks the LRU head to tail, dropping expired entries as it goes,
// and returns the first live match along with its list element so the
// caller can promote it.
func (c *Cache) scanLRU(qname string, qtype uint16, now time.Time) (*RecordBundle, *list.Element) {
	nowUnix := now.Unix()
	var next *list.Element
	for e := c.lru.Front(); e != nil; e = next {
		next = e.Next()
		b := e.Value.(*RecordBundle)
		if b.expired(nowUnix) {
			c.lru.Remove(e)
			continue
		}
		if b.matches(qname, qtype) {
			return b, e
		}
	}
	return nil, nil
}

// HostEntry is one parsed line from the hosts collaborator (§6): a domain
// name and its textual IP, as produced by internal/hostsfile.
type HostEntry struct {
	Domain string
	IPText string
}

// SeedHosts loads permanent authoritative entries at construction time
// (§4.6). Each entry is inserted directly into the map (never the LRU) with
// ExpireAt = Never; 0.0.0.0 becomes the pollution-shield marker.
func (c *Cache) SeedHosts(entries []HostEntry) error {
	for _, e := range entries {
		rr, err := HostRecord(e)
		if err != nil {
			return fmt.Errorf("cache: seeding %q: %w", e.Domain, err)
		}
		b := &RecordBundle{
			RR:       []wire.Record{rr},
			ANCount:  1,
			QType:    rr.Type,
			ExpireAt: Never,
		}
		c.insertMap(b)
	}
	return nil
}

// HostRecord builds the authoritative RR a hosts-file entry produces (§4.6):
// an A or AAAA record for a normal IP, or the type-255 shield marker for
// "0.0.0.0". cmd/printhosts uses this directly to show what the cache would
// load without constructing a full Cache.
func HostRecord(e HostEntry) (wire.Record, error) {
	name := wire.NormalizeName(e.Domain)

	if strings.Contains(e.IPText, ".") {
		if e.IPText == "0.0.0.0" {
			return wire.Record{
				Name: name, Type: uint16(wire.TypeShield), Class: uint16(wire.ClassIN),
				TTL: wire.TTLNever, Data: []byte{0, 0, 0, 0},
			}, nil
		}
		ip := net.ParseIP(e.IPText).To4()
		if ip == nil {
			return wire.Record{}, fmt.Errorf("invalid IPv4 %q", e.IPText)
		}
		return wire.Record{
			Name: name, Type: uint16(wire.TypeA), Class: uint16(wire.ClassIN),
			TTL: wire.TTLNever, Data: []byte(ip),
		}, nil
	}
	if strings.Contains(e.IPText, ":") {
		ip := net.ParseIP(e.IPText).To16()
		if ip == nil {
			return wire.Record{}, fmt.Errorf("invalid IPv6 %q", e.IPText)
		}
		return wire.Record{
			Name: name, Type: uint16(wire.TypeAAAA), Class: uint16(wire.ClassIN),
			TTL: wire.TTLNever, Data: []byte(ip),
		}, nil
	}
	return wire.Record{}, fmt.Errorf("%q is neither IPv4 nor IPv6", e.IPText)
}
