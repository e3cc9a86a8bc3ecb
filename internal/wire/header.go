package wire

import (
	"encoding/binary"
	"fmt"
)

// Header represents a DNS message header (RFC 1035 Section 4.1.1).
//
// The header is always 12 bytes: a 16-bit ID, a 16-bit flags word packed as
// qr(1) | opcode(4) | aa(1) | tc(1) | rd(1) | ra(1) | z(3) | rcode(4) from
// the MSB down, and four 16-bit section counts.
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// HeaderSize is the fixed size of a DNS header in bytes.
const HeaderSize = 12

// Flag bit positions and masks (MSB = bit 15), per RFC 1035 §4.1.1.
const (
	qrFlag     uint16 = 0x8000 // bit 15
	opcodeMask uint16 = 0x7800 // bits 14-11
	opcodeShift       = 11
	aaFlag     uint16 = 0x0400 // bit 10
	tcFlag     uint16 = 0x0200 // bit 9
	rdFlag     uint16 = 0x0100 // bit 8
	raFlag     uint16 = 0x0080 // bit 7
	zMask      uint16 = 0x0070 // bits 6-4
	zShift            = 4
	rcodeMask  uint16 = 0x000F // bits 3-0
)

func (h Header) QR() bool        { return h.Flags&qrFlag != 0 }
func (h Header) Opcode() uint16  { return (h.Flags & opcodeMask) >> opcodeShift }
func (h Header) AA() bool        { return h.Flags&aaFlag != 0 }
func (h Header) TC() bool        { return h.Flags&tcFlag != 0 }
func (h Header) RD() bool        { return h.Flags&rdFlag != 0 }
func (h Header) RA() bool        { return h.Flags&raFlag != 0 }
func (h Header) Z() uint16       { return (h.Flags & zMask) >> zShift }
func (h Header) RCode() RCode    { return RCode(h.Flags & rcodeMask) }

func setBit(flags uint16, mask uint16, set bool) uint16 {
	if set {
		return flags | mask
	}
	return flags &^ mask
}

func (h *Header) SetQR(v bool)  { h.Flags = setBit(h.Flags, qrFlag, v) }
func (h *Header) SetAA(v bool)  { h.Flags = setBit(h.Flags, aaFlag, v) }
func (h *Header) SetTC(v bool)  { h.Flags = setBit(h.Flags, tcFlag, v) }
func (h *Header) SetRD(v bool)  { h.Flags = setBit(h.Flags, rdFlag, v) }
func (h *Header) SetRA(v bool)  { h.Flags = setBit(h.Flags, raFlag, v) }

func (h *Header) SetOpcode(op uint16) {
	h.Flags = (h.Flags &^ opcodeMask) | ((op << opcodeShift) & opcodeMask)
}

func (h *Header) SetRCode(rc RCode) {
	h.Flags = (h.Flags &^ rcodeMask) | (uint16(rc) & rcodeMask)
}

// Marshal serializes the header to wire format (big-endian, 12 bytes).
func (h Header) Marshal() ([]byte, error) {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(b[0:2], h.ID)
	binary.BigEndian.PutUint16(b[2:4], h.Flags)
	binary.BigEndian.PutUint16(b[4:6], h.QDCount)
	binary.BigEndian.PutUint16(b[6:8], h.ANCount)
	binary.BigEndian.PutUint16(b[8:10], h.NSCount)
	binary.BigEndian.PutUint16(b[10:12], h.ARCount)
	return b, nil
}

// ParseHeader parses a DNS header from msg at *off, advancing *off by
// HeaderSize on success. QR and QDCount are each read directly from their
// own 16-bit fields; there is no transient aliasing between them.
func ParseHeader(msg []byte, off *int) (Header, error) {
	if *off+HeaderSize > len(msg) {
		return Header{}, fmt.Errorf("%w: unexpected EOF while reading DNS header", ErrMalformedMessage)
	}
	h := Header{
		ID:      binary.BigEndian.Uint16(msg[*off : *off+2]),
		Flags:   binary.BigEndian.Uint16(msg[*off+2 : *off+4]),
		QDCount: binary.BigEndian.Uint16(msg[*off+4 : *off+6]),
		ANCount: binary.BigEndian.Uint16(msg[*off+6 : *off+8]),
		NSCount: binary.BigEndian.Uint16(msg[*off+8 : *off+10]),
		ARCount: binary.BigEndian.Uint16(msg[*off+10 : *off+12]),
	}
	*off += HeaderSize
	return h, nil
}
