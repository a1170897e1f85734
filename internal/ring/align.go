package ring

// Segment is a contiguous, non-wrapping run of ring bytes, anchored to an
// absolute target address for its first byte.
type Segment struct {
	Addr uint32 // target address of the first byte in this segment
	Len  uint32 // number of bytes in this segment
}

// SplitSegments splits a ring transfer of count bytes, starting at ring
// offset start (0..255), into at most two linear segments that never cross
// the ring's 256-byte wrap point: a pre-wrap segment from start to the end
// of the ring, and (if the transfer overruns the ring) a post-wrap segment
// from offset 0. byteAddr maps a ring-relative offset to an absolute target
// address (TXByteAddr or RXByteAddr bound to a base).
func SplitSegments(byteAddr func(i uint8) uint32, start uint8, count uint16) []Segment {
	if count == 0 {
		return nil
	}
	toEnd := PayloadSize - int(start)
	if int(count) <= toEnd {
		return []Segment{{Addr: byteAddr(start), Len: uint32(count)}}
	}
	return []Segment{
		{Addr: byteAddr(start), Len: uint32(toEnd)},
		{Addr: byteAddr(0), Len: uint32(count) - uint32(toEnd)},
	}
}

// Transfer is a single SWD sub-transfer: either a byte-wise write/read of
// 1-3 bytes, or a word-wise (32-bit aligned) transfer whose length is a
// multiple of 4.
type Transfer struct {
	Addr uint32
	Len  uint32
	Wide bool // true: issue as a 32-bit transfer; false: issue as 8-bit
}

// SplitWrite splits one linear segment into the ordered (head-bytes,
// word-body, tail-bytes) sub-transfers required to honor SWD's 32-bit
// alignment rule for both address and length: head_bytes brings addr up to
// the next word boundary, word_bytes is the largest multiple of 4 that
// fits in what remains, and tail_bytes is the 0-3 byte remainder.
func SplitWrite(seg Segment) []Transfer {
	addr, n := seg.Addr, seg.Len
	var out []Transfer

	head := uint32(4-addr%4) % 4
	if head > n {
		head = n
	}
	if head > 0 {
		out = append(out, Transfer{Addr: addr, Len: head, Wide: false})
		addr += head
		n -= head
	}

	word := n - n%4
	if word > 0 {
		out = append(out, Transfer{Addr: addr, Len: word, Wide: true})
		addr += word
		n -= word
	}

	if n > 0 {
		out = append(out, Transfer{Addr: addr, Len: n, Wide: false})
	}
	return out
}

// SplitRead computes the word-rounded read descriptor for the drain path's
// dual form: the read address is rounded down to the previous word
// boundary and the length is rounded up to the next multiple of 4, so that
// a single 32-bit-aligned read covers the whole segment. offset is where
// the segment's valid bytes begin within the returned buffer.
func SplitRead(seg Segment) (addr uint32, length uint32, offset uint32) {
	offset = seg.Addr % 4
	addr = seg.Addr - offset
	length = (seg.Len + offset + 3) &^ 3
	return addr, length, offset
}
