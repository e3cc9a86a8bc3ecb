package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	names := []string{"example.com.", "www.example.org.", "a.", "home.lan."}
	for _, n := range names {
		wire, err := EncodeName(n)
		require.NoError(t, err)
		off := 0
		got, err := DecodeName(wire, &off)
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, len(wire), off)
	}
}

func TestDecodeNameFollowsCompressionPointer(t *testing.T) {
	// "example.com." at offset 0, then a label "www" followed by a pointer
	// back to offset 0.
	base, err := EncodeName("example.com.")
	require.NoError(t, err)
	msg := append([]byte{}, base...)
	msg = append(msg, 3, 'w', 'w', 'w', 0xC0, 0x00)

	off := len(base)
	name, err := DecodeName(msg, &off)
	require.NoError(t, err)
	assert.Equal(t, "www.example.com.", name)
}

func TestDecodeNameRejectsSelfPointer(t *testing.T) {
	// A pointer at offset 0 targeting offset 0 (itself).
	msg := []byte{0xC0, 0x00}
	off := 0
	_, err := DecodeName(msg, &off)
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeNameRejectsForwardPointer(t *testing.T) {
	// Pointer at offset 0 targets offset 5, which is ahead of it.
	msg := []byte{0xC0, 0x05, 0, 0, 0, 0}
	off := 0
	_, err := DecodeName(msg, &off)
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestDecodeNameRejectsOversizeLabel(t *testing.T) {
	var msg []byte
	label := make([]byte, 64) // exceeds the 63-byte label limit
	for i := range label {
		label[i] = 'a'
	}
	msg = append(msg, byte(len(label)))
	msg = append(msg, label...)
	msg = append(msg, 0)
	off := 0
	_, err := DecodeName(msg, &off)
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestPacketMarshalParseRoundTrip(t *testing.T) {
	p := Packet{
		Header: Header{ID: 0x1234, QDCount: 1, ANCount: 1},
		Questions: []Question{
			{Name: "example.org.", Type: uint16(TypeA), Class: uint16(ClassIN)},
		},
		Answers: []Record{
			{Name: "example.org.", Type: uint16(TypeA), Class: uint16(ClassIN), TTL: 300, Data: []byte{1, 2, 3, 4}},
		},
	}
	p.Header.SetQR(true)
	p.Header.SetRD(true)
	p.Header.SetRA(true)

	raw, err := p.Marshal()
	require.NoError(t, err)

	got, err := ParsePacket(raw)
	require.NoError(t, err)
	assert.Equal(t, p.Header.ID, got.Header.ID)
	assert.True(t, got.Header.QR())
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "example.org.", got.Questions[0].Name)
	require.Len(t, got.Answers, 1)
	ip, ok := got.Answers[0].IPv4()
	assert.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)
}

func TestRecordSOARoundTrip(t *testing.T) {
	rr := Record{
		Name:  "example.org.",
		Type:  uint16(TypeSOA),
		Class: uint16(ClassIN),
		TTL:   3600,
		Data: SOAData{
			MName:   "ns1.example.org.",
			RName:   "hostmaster.example.org.",
			Serial:  2024010100,
			Refresh: 7200,
			Retry:   3600,
			Expire:  1209600,
			Minimum: 300,
		},
	}
	raw, err := rr.Marshal()
	require.NoError(t, err)
	off := 0
	got, err := ParseRecord(raw, &off)
	require.NoError(t, err)
	soa, ok := got.Data.(SOAData)
	require.True(t, ok)
	assert.Equal(t, rr.Data.(SOAData), soa)
}

func TestRecordShieldMarker(t *testing.T) {
	rr := Record{Name: "ads.example.com.", Type: uint16(TypeShield), Class: uint16(ClassIN), TTL: TTLNever, Data: []byte{0, 0, 0, 0}}
	assert.True(t, rr.IsShield())

	notShield := Record{Name: "home.lan.", Type: uint16(TypeA), Data: []byte{192, 168, 1, 10}}
	assert.False(t, notShield.IsShield())
}
