// Package relay implements the downstream/upstream UDP I/O and the
// single-threaded event loop of §5: all mutation of the cache, query pool,
// and ID pool happens on one goroutine. Blocking socket reads run on their
// own goroutines (the only place the teacher's per-core worker-pool design
// would otherwise reappear), but every received datagram and every timer
// fire is marshaled onto a single command channel and executed serially, so
// the core components (C3-C7) never observe concurrent access.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nodns-go/nodns/internal/cache"
	"github.com/nodns-go/nodns/internal/hostsfile"
	"github.com/nodns-go/nodns/internal/idpool"
	"github.com/nodns-go/nodns/internal/pool"
	"github.com/nodns-go/nodns/internal/querypool"
	"github.com/nodns-go/nodns/internal/ratelimit"
	"github.com/nodns-go/nodns/internal/wire"
)

// recvBufferPool reduces allocations for incoming UDP datagrams, grounded on
// the teacher's internal/pool-backed receive path in
// internal/server/udp_server.go (there one pool per fleet of sockets; here
// one pool shared by the downstream and upstream sockets since the relay
// loop itself is single-threaded).
var recvBufferPool = pool.New(wire.MaxIncomingMessageSize)

// Config configures the Daemon aggregate (§9 design note): a single struct
// that owns the cache, ID pool, query pool, and the two UDP sockets, in
// place of the teacher's/original's global mutable singletons.
type Config struct {
	DownstreamAddr string // e.g. "0.0.0.0:53"
	UpstreamAddr   string // e.g. "0.0.0.0:5300" ("0.0.0.0:0" for OS-assigned)
	RemoteHost     string // upstream resolver IPv4
	RemotePort     int    // upstream resolver port, always 53 per §6

	CacheSize   int
	HostEntries []cache.HostEntry

	RateLimit *ratelimit.Config // nil disables admission control

	Logger *slog.Logger
}

// Daemon is the capability-set aggregate of §9: it owns every piece of
// mutable state the relay touches and exposes exactly the lifecycle the
// entrypoint needs (Run, Shutdown). Nothing here is a package-level global.
type Daemon struct {
	cfg        Config
	log        *slog.Logger
	cache      *cache.Cache
	ids        *idpool.Pool
	pool       *querypool.Pool
	limiter    *ratelimit.Limiter
	remoteAddr *net.UDPAddr

	downstream *net.UDPConn
	upstream   *net.UDPConn

	commands chan func()
	wg       sync.WaitGroup
}

// New constructs a Daemon. It does not bind sockets; call Run for that.
func New(cfg Config) (*Daemon, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = cache.DefaultSize
	}
	if cfg.RemotePort == 0 {
		cfg.RemotePort = 53
	}

	remoteIP := net.ParseIP(cfg.RemoteHost)
	if remoteIP == nil || remoteIP.To4() == nil {
		return nil, fmt.Errorf("relay: remote_host %q is not a valid IPv4 address", cfg.RemoteHost)
	}

	c := cache.New(cfg.CacheSize)
	if err := c.SeedHosts(cfg.HostEntries); err != nil {
		return nil, fmt.Errorf("relay: seeding hosts: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit != nil {
		limiter = ratelimit.New(*cfg.RateLimit)
	}

	d := &Daemon{
		cfg:        cfg,
		log:        cfg.Logger,
		cache:      c,
		ids:        idpool.New(),
		limiter:    limiter,
		remoteAddr: &net.UDPAddr{IP: remoteIP.To4(), Port: cfg.RemotePort},
		commands:   make(chan func(), 256),
	}
	d.pool = querypool.New(querypool.DefaultSize, c, d.ids, d, d.log)
	d.pool.SetAfterFunc(d.afterFunc)
	return d, nil
}

// afterFunc arms a timer whose callback posts onto the command channel
// instead of running on the runtime timer goroutine directly, preserving
// the single-loop serialization §5 requires for timer fires.
func (d *Daemon) afterFunc(dur time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(dur, func() {
		d.post(fn)
	})
}

// post enqueues fn for execution on the event loop goroutine. It never
// blocks the caller for long: the command channel is generously buffered,
// and a full channel only happens under sustained overload, in which case
// dropping the post (and thus the datagram or timer fire it represents) is
// preferable to blocking a receiver goroutine indefinitely.
func (d *Daemon) post(fn func()) {
	select {
	case d.commands <- fn:
	default:
		d.log.Error("event loop command channel full, dropping event")
	}
}

// Send implements querypool.Sender: reply to a client on the downstream
// socket.
func (d *Daemon) Send(addr *net.UDPAddr, msg wire.Packet) error {
	b, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("relay: encode reply: %w", err)
	}
	_, err = d.downstream.WriteToUDP(b, addr)
	return err
}

// Forward implements querypool.Sender: send a query to the configured
// upstream resolver.
func (d *Daemon) Forward(msg wire.Packet) error {
	b, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("relay: encode upstream query: %w", err)
	}
	_, err = d.upstream.WriteToUDP(b, d.remoteAddr)
	return err
}

// Run binds both sockets and blocks, running the event loop until ctx is
// cancelled. It returns nil on a clean shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	downstream, err := listenReuseAddr(d.cfg.DownstreamAddr)
	if err != nil {
		return fmt.Errorf("relay: bind downstream %s: %w", d.cfg.DownstreamAddr, err)
	}
	d.downstream = downstream

	upstream, err := listenReuseAddr(d.cfg.UpstreamAddr)
	if err != nil {
		downstream.Close()
		return fmt.Errorf("relay: bind upstream %s: %w", d.cfg.UpstreamAddr, err)
	}
	d.upstream = upstream

	d.log.Info("relay listening",
		"downstream", downstream.LocalAddr(),
		"upstream", upstream.LocalAddr(),
		"remote", d.remoteAddr)

	d.wg.Add(2)
	go d.recvLoop(ctx, downstream, d.handleDownstream)
	go d.recvLoop(ctx, upstream, d.handleUpstream)

	d.loop(ctx)
	d.Shutdown()
	d.wg.Wait()
	return nil
}

// Shutdown closes both sockets, unblocking the receive goroutines. The event
// loop itself ends when Run's context is cancelled; Run also calls Shutdown
// at that point.
func (d *Daemon) Shutdown() {
	if d.downstream != nil {
		d.downstream.Close()
	}
	if d.upstream != nil {
		d.upstream.Close()
	}
}

// loop is the single-threaded reactor of §5: it is the only goroutine that
// ever touches d.cache, d.ids, or d.pool.
func (d *Daemon) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.commands:
			fn()
		}
	}
}

// recvLoop blocks on ReadFromUDP and posts a closure running handle on the
// event loop goroutine for each datagram. This is the one suspension point
// (§5a) that lives off the loop goroutine; everything it posts runs
// serially with every other event.
func (d *Daemon) recvLoop(ctx context.Context, conn *net.UDPConn, handle func(*net.UDPAddr, []byte)) {
	defer d.wg.Done()
	for {
		bufPtr := recvBufferPool.Get()
		buf := *bufPtr

		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			recvBufferPool.Put(bufPtr)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			d.log.Error("udp read failure", "err", err)
			return
		}

		payload := append([]byte(nil), buf[:n]...)
		recvBufferPool.Put(bufPtr)

		d.post(func() {
			handle(peer, payload)
		})
	}
}

// handleDownstream decodes a client datagram and feeds it to the query
// pool. A MalformedMessage is dropped per §7: no slot is allocated, no
// reply is sent.
func (d *Daemon) handleDownstream(peer *net.UDPAddr, payload []byte) {
	if d.limiter != nil {
		if addr, ok := netip.AddrFromSlice(peer.IP); ok && !d.limiter.Allow(addr.Unmap()) {
			return
		}
	}

	msg, err := wire.ParsePacket(payload)
	if err != nil {
		d.log.Error("malformed client datagram", "client", peer, "err", err)
		return
	}

	if err := d.pool.Insert(peer, msg); err != nil {
		d.log.Error("query pool insert failed", "client", peer, "err", err)
	}
}

// handleUpstream decodes an upstream reply and feeds it to the query pool's
// finish operation. A MalformedMessage from the upstream resolver is
// dropped the same way a malformed client datagram is.
func (d *Daemon) handleUpstream(_ *net.UDPAddr, payload []byte) {
	msg, err := wire.ParsePacket(payload)
	if err != nil {
		d.log.Error("malformed upstream reply", "err", err)
		return
	}
	if err := d.pool.Finish(msg); err != nil {
		d.log.Error("query pool finish failed", "err", err)
	}
}

// listenReuseAddr binds a UDP socket with SO_REUSEADDR set (§6), matching
// the teacher's listenReusePort in internal/server/udp_server.go but with
// SO_REUSEADDR instead of SO_REUSEPORT: the relay's loop is single-threaded
// and needs exactly one socket per side, not one per core.
func listenReuseAddr(addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// LoadHosts loads a hosts file through the hostsfile collaborator. It is a
// free function rather than a Daemon method: cmd/nodns calls it before the
// Daemon exists, to fill Config.HostEntries. An empty path yields no entries
// and no error.
func LoadHosts(path string) ([]cache.HostEntry, error) {
	if path == "" {
		return nil, nil
	}
	return hostsfile.Load(path)
}
