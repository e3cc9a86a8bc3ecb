// Command dnsquery sends a single UDP query against any DNS server
// (typically the relay itself) and pretty-prints the response. It is a
// test/ops tool, not part of the core: the core only encodes/decodes wire
// format (§1).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/nodns-go/nodns/internal/wire"
)

func main() {
	var (
		server   = flag.String("server", "127.0.0.1:53", "DNS server HOST:PORT")
		name     = flag.String("name", "example.com", "Query name")
		qtype    = flag.Int("qtype", int(wire.TypeA), "Query type (numeric, A=1)")
		timeout  = flag.Duration("timeout", 2*time.Second, "Timeout")
		recvSize = flag.Int("recv-size", wire.MaxIncomingMessageSize, "UDP receive buffer size")
		quiet    = flag.Bool("quiet", false, "Suppress output (exit status indicates success)")
	)
	flag.Parse()

	resp, err := queryUDP(*server, *name, uint16(*qtype), *timeout, *recvSize)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "dnsquery error: %v\n", err)
		}
		os.Exit(1)
	}
	if *quiet {
		return
	}

	p, err := wire.ParsePacket(resp)
	if err != nil {
		fmt.Printf("received %d bytes (unparseable: %v)\n", len(resp), err)
		return
	}

	fmt.Printf("id=%d rcode=%d answers=%d authorities=%d additionals=%d\n",
		p.Header.ID,
		p.Header.RCode(),
		len(p.Answers),
		len(p.Authorities),
		len(p.Additionals),
	)

	rows := make([]string, 0, len(p.Answers))
	for _, rr := range p.Answers {
		rows = append(rows, formatRR(rr))
	}
	sort.Strings(rows)
	for _, s := range rows {
		fmt.Println(s)
	}
}

func queryUDP(server, name string, qtype uint16, timeout time.Duration, recvSize int) ([]byte, error) {
	addr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, err
	}
	c, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	reqBytes, err := buildQuery(name, qtype)
	if err != nil {
		return nil, err
	}
	_ = c.SetDeadline(time.Now().Add(timeout))
	if _, err := c.Write(reqBytes); err != nil {
		return nil, err
	}
	buf := make([]byte, recvSize)
	n, err := c.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func buildQuery(name string, qtype uint16) ([]byte, error) {
	h := wire.Header{ID: uint16(time.Now().UnixNano())}
	h.SetRD(true)
	p := wire.Packet{
		Header:    h,
		Questions: []wire.Question{{Name: wire.NormalizeName(name), Type: qtype, Class: uint16(wire.ClassIN)}},
	}
	return p.Marshal()
}

func formatRR(rr wire.Record) string {
	name := rr.Name
	if name == "" {
		name = "."
	}
	switch wire.RecordType(rr.Type) {
	case wire.TypeShield:
		return fmt.Sprintf("%s %d IN SHIELD (pollution block)", name, rr.TTL)
	case wire.TypeA:
		if b, ok := rr.Data.([]byte); ok && len(b) == 4 {
			return fmt.Sprintf("%s %d IN A %d.%d.%d.%d", name, rr.TTL, b[0], b[1], b[2], b[3])
		}
	case wire.TypeAAAA:
		if b, ok := rr.Data.([]byte); ok && len(b) == 16 {
			return fmt.Sprintf("%s %d IN AAAA %s", name, rr.TTL, net.IP(b).String())
		}
	case wire.TypeCNAME:
		if s, ok := rr.Data.(string); ok {
			return fmt.Sprintf("%s %d IN CNAME %s", name, rr.TTL, s)
		}
	case wire.TypeNS:
		if s, ok := rr.Data.(string); ok {
			return fmt.Sprintf("%s %d IN NS %s", name, rr.TTL, s)
		}
	case wire.TypePTR:
		if s, ok := rr.Data.(string); ok {
			return fmt.Sprintf("%s %d IN PTR %s", name, rr.TTL, s)
		}
	case wire.TypeMX:
		if mx, ok := rr.Data.(wire.MXData); ok {
			return fmt.Sprintf("%s %d IN MX %d %s", name, rr.TTL, mx.Preference, mx.Exchange)
		}
	case wire.TypeSOA:
		if soa, ok := rr.Data.(wire.SOAData); ok {
			return fmt.Sprintf("%s %d IN SOA %s %s %d %d %d %d %d",
				name, rr.TTL, soa.MName, soa.RName, soa.Serial, soa.Refresh, soa.Retry, soa.Expire, soa.Minimum)
		}
	case wire.TypeTXT:
		switch d := rr.Data.(type) {
		case string:
			return fmt.Sprintf("%s %d IN TXT %q", name, rr.TTL, d)
		case []byte:
			return fmt.Sprintf("%s %d IN TXT %q", name, rr.TTL, string(d))
		}
	}
	return fmt.Sprintf("%s %d IN TYPE%d (unparsed)", name, rr.TTL, rr.Type)
}
