// Package wire implements the RFC 1035 wire codec: decoding and encoding of
// DNS messages, including name compression on input.
//
// The codec never performs compression on output: upstream replies still
// decode correctly because compression is always resolved on input, and
// emitting flat (uncompressed) names is a valid, if larger, wire encoding.
package wire

import "errors"

// ErrMalformedMessage is returned by ParsePacket (and the ParseHeader,
// ParseQuestion, ParseRecord and DecodeName steps it is built from) when the
// input buffer violates RFC 1035 framing: truncated header/records, a name
// exceeding 255 bytes, a compression cycle, or a forward/self-referencing
// compression pointer. The encoding functions wrap it too when a name or
// RDATA cannot be put on the wire.
var ErrMalformedMessage = errors.New("wire: malformed dns message")
