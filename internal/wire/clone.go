package wire

// Clone returns a deep copy of p: every record slice, and any []byte RDATA
// within it, is copied rather than shared. The codec guarantees no buffer is
// aliased between a message, a cache bundle, and an in-flight query slot —
// this is the operation that provides that guarantee (§3, §9).
func (p Packet) Clone() Packet {
	return Packet{
		Header:      p.Header,
		Questions:   append([]Question(nil), p.Questions...),
		Answers:     cloneRecords(p.Answers),
		Authorities: cloneRecords(p.Authorities),
		Additionals: cloneRecords(p.Additionals),
	}
}

func cloneRecords(rrs []Record) []Record {
	if rrs == nil {
		return nil
	}
	out := make([]Record, len(rrs))
	for i, rr := range rrs {
		out[i] = rr
		if b, ok := rr.Data.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			out[i].Data = cp
		}
	}
	return out
}
