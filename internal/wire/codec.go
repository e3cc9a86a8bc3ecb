package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// NormalizeName lowercases a name and appends a trailing dot if it does not
// already end in one, the in-memory convention this package uses throughout
// (RFC 1035 names are case-insensitive per RFC 4343; the trailing dot marks
// the name as fully qualified).
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}

// EncodeName encodes a domain name to DNS wire format (RFC 1035 §3.1): a
// sequence of length-prefixed labels terminated by a zero-length label. The
// input may or may not carry a trailing dot; exactly one is consumed before
// splitting into labels, so "example.com." and "example.com" encode
// identically. This function never emits a compression pointer — see the
// package doc.
func EncodeName(domain string) ([]byte, error) {
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" {
		return []byte{0}, nil // root
	}

	out := make([]byte, 0, len(domain)+2)
	labelStart := 0
	for i := 0; i <= len(domain); i++ {
		if i == len(domain) || domain[i] == '.' {
			if i == labelStart {
				return nil, fmt.Errorf("%w: invalid domain name (empty label): %q", ErrMalformedMessage, domain)
			}
			label := domain[labelStart:i]

			for j := range len(label) {
				if label[j] > 0x7F {
					return nil, fmt.Errorf("%w: domain name must be ASCII", ErrMalformedMessage)
				}
			}
			if len(label) > 63 {
				return nil, fmt.Errorf("%w: DNS label too long (%d > 63): %q", ErrMalformedMessage, len(label), label)
			}

			out = append(out, byte(len(label)))
			out = append(out, label...)
			labelStart = i + 1
		}
	}
	out = append(out, 0)

	if len(out) > 255 {
		return nil, fmt.Errorf("%w: encoded domain name too long (%d > 255)", ErrMalformedMessage, len(out))
	}
	return out, nil
}

// DecodeName decodes a possibly-compressed DNS name from msg starting at
// *off, advancing *off past the name as it appears in the message — a
// followed compression pointer never advances *off beyond the two bytes of
// the pointer itself. The result is dot-separated and trailing-dot
// terminated (the root name decodes to ".").
func DecodeName(msg []byte, off *int) (string, error) {
	labels, err := decodeName(msg, off, 0, map[int]struct{}{})
	if err != nil {
		return "", err
	}
	name := joinLabels(labels)
	if len(name) > maxNameLength {
		return "", fmt.Errorf("%w: decoded DNS name exceeds 255 bytes", ErrMalformedMessage)
	}
	return name, nil
}

const maxNameLength = 255
const maxCompressionDepth = 20

// decodeName is the recursive implementation of DecodeName. It tracks
// recursion depth and visited pointer targets to bound cycles, and enforces
// that every compression pointer targets an offset strictly before the
// pointer's own first byte (RFC 1035 §4.1.4: pointers only ever reference
// prior occurrences in the message; a forward or self-referencing pointer is
// malformed).
func decodeName(msg []byte, off *int, depth int, visited map[int]struct{}) ([]string, error) {
	if depth > maxCompressionDepth {
		return nil, fmt.Errorf("%w: too many DNS compression pointer indirections", ErrMalformedMessage)
	}
	if *off < 0 || *off >= len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF while decoding DNS name", ErrMalformedMessage)
	}

	var labels []string
	total := 0
	for {
		if *off >= len(msg) {
			return nil, fmt.Errorf("%w: unexpected EOF while decoding DNS name", ErrMalformedMessage)
		}
		pointerStart := *off
		labelLen := msg[*off]
		*off++

		if labelLen == 0 {
			break
		}

		if isCompressionPointer(labelLen) {
			rest, err := followCompressionPointer(msg, off, labelLen, pointerStart, depth, visited)
			if err != nil {
				return nil, err
			}
			labels = append(labels, rest...)
			break
		}

		if hasReservedBits(labelLen) {
			return nil, fmt.Errorf("%w: invalid DNS label length (reserved high bits set)", ErrMalformedMessage)
		}

		label, err := readLabel(msg, off, int(labelLen))
		if err != nil {
			return nil, err
		}
		total += len(label) + 1
		if total > maxNameLength {
			return nil, fmt.Errorf("%w: decoded DNS name exceeds 255 bytes", ErrMalformedMessage)
		}
		labels = append(labels, label)
	}

	return labels, nil
}

func isCompressionPointer(b byte) bool {
	return (b & 0xC0) == 0xC0
}

func hasReservedBits(b byte) bool {
	return (b & 0xC0) != 0
}

// followCompressionPointer follows a DNS compression pointer and returns the
// labels found at its target. ptr must be strictly less than pointerStart
// (the offset of the pointer's own first byte); a forward or self-reference
// is rejected outright, independent of the visited-set cycle guard.
func followCompressionPointer(
	msg []byte,
	off *int,
	firstByte byte,
	pointerStart int,
	depth int,
	visited map[int]struct{},
) ([]string, error) {
	if *off >= len(msg) {
		return nil, fmt.Errorf("%w: unexpected EOF while decoding compression pointer", ErrMalformedMessage)
	}

	ptr := int(binary.BigEndian.Uint16([]byte{firstByte & 0x3F, msg[*off]}))
	*off++

	if ptr >= pointerStart {
		return nil, fmt.Errorf("%w: DNS compression pointer targets a forward or self offset", ErrMalformedMessage)
	}
	if _, ok := visited[ptr]; ok {
		return nil, fmt.Errorf("%w: DNS compression pointer loop detected", ErrMalformedMessage)
	}
	visited[ptr] = struct{}{}

	ptrOff := ptr
	return decodeName(msg, &ptrOff, depth+1, visited)
}

func readLabel(msg []byte, off *int, length int) (string, error) {
	if *off+length > len(msg) {
		return "", fmt.Errorf("%w: unexpected EOF while reading DNS label", ErrMalformedMessage)
	}
	label := msg[*off : *off+length]
	*off += length

	for _, b := range label {
		if b > 0x7F {
			return "", fmt.Errorf("%w: decoded DNS name was not ASCII", ErrMalformedMessage)
		}
	}
	return string(label), nil
}

// joinLabels concatenates labels with dots and appends the trailing dot;
// zero labels (the root) joins to ".".
func joinLabels(labels []string) string {
	if len(labels) == 0 {
		return "."
	}
	var b strings.Builder
	size := 1
	for _, l := range labels {
		size += len(l) + 1
	}
	b.Grow(size)
	for _, l := range labels {
		b.WriteString(l)
		b.WriteByte('.')
	}
	return b.String()
}
