// Command printhosts loads a hosts file through internal/hostsfile and
// prints the authoritative records the cache would seed from it (§4.6),
// without standing up a relay daemon. It is a test/ops tool, mirroring the
// teacher's cmd/print-zone.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sort"

	"github.com/nodns-go/nodns/internal/cache"
	"github.com/nodns-go/nodns/internal/hostsfile"
	"github.com/nodns-go/nodns/internal/wire"
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: printhosts path/to/hosts\n")
		os.Exit(2)
	}
	path := flag.Arg(0)

	entries, err := hostsfile.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load hosts file: %v\n", err)
		os.Exit(1)
	}

	rows := make([]string, 0, len(entries))
	for _, e := range entries {
		rr, err := cache.HostRecord(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %q: %v\n", e.Domain, err)
			continue
		}
		rows = append(rows, formatHostRecord(rr))
	}
	sort.Strings(rows)

	fmt.Printf("%d entries loaded from %s\n", len(rows), path)
	for _, s := range rows {
		fmt.Println(s)
	}
}

func formatHostRecord(rr wire.Record) string {
	ttl := "NEVER"
	if rr.TTL != wire.TTLNever {
		ttl = fmt.Sprintf("%d", rr.TTL)
	}

	switch wire.RecordType(rr.Type) {
	case wire.TypeShield:
		return fmt.Sprintf("%s %s IN SHIELD (pollution block)", rr.Name, ttl)
	case wire.TypeA:
		b := rr.Data.([]byte)
		return fmt.Sprintf("%s %s IN A %d.%d.%d.%d", rr.Name, ttl, b[0], b[1], b[2], b[3])
	case wire.TypeAAAA:
		b := rr.Data.([]byte)
		return fmt.Sprintf("%s %s IN AAAA %s", rr.Name, ttl, net.IP(b).String())
	default:
		return fmt.Sprintf("%s %s IN TYPE%d", rr.Name, ttl, rr.Type)
	}
}
