package wire

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Record is a DNS resource record (RFC 1035 §3.2.1). Data holds a
// type-specific payload:
//   - A / AAAA / TypeShield: []byte (4, 16, and 4 zero bytes respectively)
//   - CNAME / NS / PTR: string (a decoded name)
//   - MX: MXData
//   - SOA: SOAData
//   - TXT: string, []string, or []byte (raw character-strings)
//   - anything else: []byte, copied verbatim
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	Data  any
}

// MXData is the structural RDATA of an MX record (RFC 1035 §3.3.9).
type MXData struct {
	Preference uint16
	Exchange   string
}

// SOAData is the structural RDATA of an SOA record (RFC 1035 §3.3.13).
type SOAData struct {
	MName   string
	RName   string
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// ParseRecord decodes one resource record from msg at *off, advancing *off
// past it. Name-bearing RDATA (CNAME/NS/PTR/MX/SOA) is decoded structurally;
// everything else is kept as opaque bytes.
func ParseRecord(msg []byte, off *int) (Record, error) {
	name, err := DecodeName(msg, off)
	if err != nil {
		return Record{}, err
	}
	if *off+10 > len(msg) {
		return Record{}, fmt.Errorf("%w: unexpected EOF while reading DNS record", ErrMalformedMessage)
	}
	rrType := binary.BigEndian.Uint16(msg[*off : *off+2])
	rrClass := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
	ttl := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	rdlen := binary.BigEndian.Uint16(msg[*off+8 : *off+10])
	*off += 10
	start := *off
	if start+int(rdlen) > len(msg) {
		return Record{}, fmt.Errorf("%w: unexpected EOF while reading DNS record rdata", ErrMalformedMessage)
	}

	var data any
	switch RecordType(rrType) {
	case TypeCNAME, TypeNS, TypePTR:
		n, err := DecodeName(msg, off)
		if err != nil {
			return Record{}, err
		}
		if *off-start != int(rdlen) {
			return Record{}, fmt.Errorf("%w: invalid rdata length for name-based type", ErrMalformedMessage)
		}
		data = n
	case TypeMX:
		if *off+2 > len(msg) {
			return Record{}, fmt.Errorf("%w: unexpected EOF while reading MX preference", ErrMalformedMessage)
		}
		pref := binary.BigEndian.Uint16(msg[*off : *off+2])
		*off += 2
		ex, err := DecodeName(msg, off)
		if err != nil {
			return Record{}, err
		}
		if *off-start != int(rdlen) {
			return Record{}, fmt.Errorf("%w: invalid rdata length for MX", ErrMalformedMessage)
		}
		data = MXData{Preference: pref, Exchange: ex}
	case TypeSOA:
		mname, err := DecodeName(msg, off)
		if err != nil {
			return Record{}, err
		}
		rname, err := DecodeName(msg, off)
		if err != nil {
			return Record{}, err
		}
		if *off+20 > len(msg) {
			return Record{}, fmt.Errorf("%w: unexpected EOF while reading SOA fields", ErrMalformedMessage)
		}
		soa := SOAData{
			MName:   mname,
			RName:   rname,
			Serial:  binary.BigEndian.Uint32(msg[*off : *off+4]),
			Refresh: binary.BigEndian.Uint32(msg[*off+4 : *off+8]),
			Retry:   binary.BigEndian.Uint32(msg[*off+8 : *off+12]),
			Expire:  binary.BigEndian.Uint32(msg[*off+12 : *off+16]),
			Minimum: binary.BigEndian.Uint32(msg[*off+16 : *off+20]),
		}
		*off += 20
		if *off-start != int(rdlen) {
			return Record{}, fmt.Errorf("%w: invalid rdata length for SOA", ErrMalformedMessage)
		}
		data = soa
	default:
		b := make([]byte, rdlen)
		copy(b, msg[*off:*off+int(rdlen)])
		*off += int(rdlen)
		data = b
	}

	return Record{Name: name, Type: rrType, Class: rrClass, TTL: ttl, Data: data}, nil
}

// Marshal serializes the record to wire format. Names are always emitted
// uncompressed.
func (rr Record) Marshal() ([]byte, error) {
	nameWire, err := EncodeName(rr.Name)
	if err != nil {
		return nil, err
	}

	rdata, err := rr.marshalRData()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nameWire)+10+len(rdata))
	out = append(out, nameWire...)
	fixed := make([]byte, 10)
	binary.BigEndian.PutUint16(fixed[0:2], rr.Type)
	binary.BigEndian.PutUint16(fixed[2:4], rr.Class)
	binary.BigEndian.PutUint32(fixed[4:8], rr.TTL)
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(rdata)))
	out = append(out, fixed...)
	out = append(out, rdata...)
	return out, nil
}

func (rr Record) marshalRData() ([]byte, error) {
	switch RecordType(rr.Type) {
	case TypeA, TypeShield:
		b, ok := rr.Data.([]byte)
		if !ok || len(b) != 4 {
			return nil, fmt.Errorf("%w: A/shield record data must be 4 bytes", ErrMalformedMessage)
		}
		return b, nil
	case TypeAAAA:
		b, ok := rr.Data.([]byte)
		if !ok || len(b) != 16 {
			return nil, fmt.Errorf("%w: AAAA record data must be 16 bytes", ErrMalformedMessage)
		}
		return b, nil
	case TypeMX:
		mx, ok := rr.Data.(MXData)
		if !ok {
			return nil, fmt.Errorf("%w: MX record data must be MXData", ErrMalformedMessage)
		}
		ex, err := EncodeName(mx.Exchange)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2+len(ex))
		binary.BigEndian.PutUint16(out[0:2], mx.Preference)
		copy(out[2:], ex)
		return out, nil
	case TypeSOA:
		soa, ok := rr.Data.(SOAData)
		if !ok {
			return nil, fmt.Errorf("%w: SOA record data must be SOAData", ErrMalformedMessage)
		}
		mname, err := EncodeName(soa.MName)
		if err != nil {
			return nil, err
		}
		rname, err := EncodeName(soa.RName)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(mname)+len(rname)+20)
		out = append(out, mname...)
		out = append(out, rname...)
		tail := make([]byte, 20)
		binary.BigEndian.PutUint32(tail[0:4], soa.Serial)
		binary.BigEndian.PutUint32(tail[4:8], soa.Refresh)
		binary.BigEndian.PutUint32(tail[8:12], soa.Retry)
		binary.BigEndian.PutUint32(tail[12:16], soa.Expire)
		binary.BigEndian.PutUint32(tail[16:20], soa.Minimum)
		out = append(out, tail...)
		return out, nil
	case TypeCNAME, TypeNS, TypePTR:
		s, ok := rr.Data.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: name-based record data must be a non-empty string", ErrMalformedMessage)
		}
		return EncodeName(s)
	case TypeTXT:
		return marshalTXT(rr.Data)
	default:
		if b, ok := rr.Data.([]byte); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: unsupported RR type for serialization: %d", ErrMalformedMessage, rr.Type)
	}
}

func marshalTXT(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return marshalTXTString(t), nil
	case []string:
		totalLen := 0
		for _, s := range t {
			totalLen += 1 + len(s)
		}
		out := make([]byte, 0, totalLen)
		for _, s := range t {
			b := []byte(s)
			if len(b) > 255 {
				return nil, fmt.Errorf("%w: TXT character-string cannot exceed 255 bytes", ErrMalformedMessage)
			}
			out = append(out, byte(len(b)))
			out = append(out, b...)
		}
		return out, nil
	case []byte:
		return t, nil
	default:
		return nil, fmt.Errorf("%w: TXT record data must be string, []string, or []byte", ErrMalformedMessage)
	}
}

func marshalTXTString(s string) []byte {
	b := []byte(s)
	if len(b) <= 255 {
		out := make([]byte, 1+len(b))
		out[0] = byte(len(b))
		copy(out[1:], b)
		return out
	}
	numChunks := (len(b) + 254) / 255
	out := make([]byte, 0, len(b)+numChunks)
	for i := 0; i < len(b); i += 255 {
		chunk := b[i:]
		if len(chunk) > 255 {
			chunk = chunk[:255]
		}
		out = append(out, byte(len(chunk)))
		out = append(out, chunk...)
	}
	return out
}

// IsShield reports whether rr is a pollution-shield marker: type 255 with
// an all-zero 4-byte payload (§4.6).
func (rr Record) IsShield() bool {
	if RecordType(rr.Type) != TypeShield {
		return false
	}
	b, ok := rr.Data.([]byte)
	if !ok || len(b) != 4 {
		return false
	}
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func (rr Record) IPv4() (string, bool) {
	if RecordType(rr.Type) != TypeA {
		return "", false
	}
	b, ok := rr.Data.([]byte)
	if !ok || len(b) != 4 {
		return "", false
	}
	return net.IPv4(b[0], b[1], b[2], b[3]).String(), true
}

func (rr Record) IPv6() (string, bool) {
	if RecordType(rr.Type) != TypeAAAA {
		return "", false
	}
	b, ok := rr.Data.([]byte)
	if !ok || len(b) != 16 {
		return "", false
	}
	return net.IP(b).String(), true
}
