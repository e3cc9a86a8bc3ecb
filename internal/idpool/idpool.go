// Package idpool implements the upstream transaction-ID allocator (C6): a
// fixed 65536-entry direct-address table plus a ring of free IDs, letting
// the relay rewrite a client's query ID to one it can use to correlate the
// eventual upstream reply.
package idpool

import "github.com/nodns-go/nodns/internal/ring"

// Capacity is the full 16-bit ID space (§4.4).
const Capacity = 1 << 16

// Entry is what the pool stores per allocated upstream ID: the local query
// slot that should receive the eventual reply.
type Entry struct {
	PrevID uint32 // the query-pool slot ID to route the reply to
}

// Pool is the ID pool of §4.4. Not safe for concurrent use — owned by the
// single event loop goroutine, per §5.
type Pool struct {
	table []*Entry
	free  *ring.Queue
}

// New constructs a Pool with the full 65536-ID space free.
func New() *Pool {
	return &Pool{
		table: make([]*Entry, Capacity),
		free:  ring.NewFilled(Capacity),
	}
}

// Full reports whether every ID is currently in use.
func (p *Pool) Full() bool {
	return p.free.Len() == 0
}

// Insert allocates a free ID, stores e at that index, and returns the ID.
// ok is false iff the pool is full.
func (p *Pool) Insert(e Entry) (id uint16, ok bool) {
	v, ok := p.free.Pop()
	if !ok {
		return 0, false
	}
	id = uint16(v)
	entry := e
	p.table[id] = &entry
	return id, true
}

// Query reports whether id is currently allocated.
func (p *Pool) Query(id uint16) bool {
	return p.table[id] != nil
}

// Delete removes and returns the entry stored at id, returning the ID to
// the free ring. ok is false if id was not allocated.
func (p *Pool) Delete(id uint16) (Entry, bool) {
	e := p.table[id]
	if e == nil {
		return Entry{}, false
	}
	p.table[id] = nil
	p.free.Push(uint32(id))
	return *e, true
}
