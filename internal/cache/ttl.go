package cache

import (
	"container/list"
	"time"

	"github.com/nodns-go/nodns/internal/wire"
)

// Never marks a RecordBundle that must never expire — host-file entries are
// seeded with this sentinel (§4.2, §4.6). Wire-level TTLs use their own
// sentinel, wire.TTLNever; this one is the in-memory wall-clock analogue.
const Never int64 = -1

// RecordBundle is one complete cached answer (§3): the RR chain for a
// question, the section counts that partition it, the question type it
// answers, and its expiry.
type RecordBundle struct {
	RR       []wire.Record
	ANCount  uint16
	NSCount  uint16
	ARCount  uint16
	QType    uint16
	ExpireAt int64 // unix seconds, or Never
}

// expired reports whether b is no longer valid at now.
func (b *RecordBundle) expired(now int64) bool {
	return b.ExpireAt != Never && b.ExpireAt <= now
}

// matches implements the cache's match predicate (§4.2): the bundle's first
// RR name equals qname, and its type equals qtype or the shield-any marker.
func (b *RecordBundle) matches(qname string, qtype uint16) bool {
	if len(b.RR) == 0 || b.RR[0].Name != qname {
		return false
	}
	return b.QType == qtype || wire.RecordType(b.QType) == wire.TypeShield
}

func cloneBundle(b *RecordBundle) *RecordBundle {
	rr := make([]wire.Record, len(b.RR))
	copy(rr, b.RR)
	for i, r := range rr {
		if data, ok := r.Data.([]byte); ok {
			cp := make([]byte, len(data))
			copy(cp, data)
			rr[i].Data = cp
		}
	}
	return &RecordBundle{
		RR:       rr,
		ANCount:  b.ANCount,
		NSCount:  b.NSCount,
		ARCount:  b.ARCount,
		QType:    b.QType,
		ExpireAt: b.ExpireAt,
	}
}

// bucket is the TTL record list of C4: a per-hash-key list of bundles,
// pruned lazily as it is scanned rather than on a timer.
type bucket struct {
	entries *list.List // of *RecordBundle
}

func newBucket() *bucket {
	return &bucket{entries: list.New()}
}

// append adds b to the bucket.
func (bk *bucket) append(b *RecordBundle) {
	bk.entries.PushBack(b)
}

// findAndPrune scans the bucket for the first live bundle matching qname and
// qtype, dropping expired entries as it encounters them. It reports whether
// the bucket is now empty (the caller should delete it from the map).
func (bk *bucket) findAndPrune(qname string, qtype uint16, now time.Time) (found *RecordBundle, empty bool) {
	nowUnix := now.Unix()
	var next *list.Element
	for e := bk.entries.Front(); e != nil; e = next {
		next = e.Next()
		b := e.Value.(*RecordBundle)
		if b.expired(nowUnix) {
			bk.entries.Remove(e)
			continue
		}
		if found == nil && b.matches(qname, qtype) {
			found = b
		}
	}
	return found, bk.entries.Len() == 0
}
