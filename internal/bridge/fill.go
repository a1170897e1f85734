package bridge

import (
	"bytes"

	"github.com/Crest/swdcom/internal/ring"
	"golang.org/x/sys/unix"
)

// produce fills the target's TX ring from the currently selected input
// source (stdin, an upload file, or a synthetic framing sequence),
// implementing spec.md §4.E.
func (b *Bridge) produce(idx ring.Indices) (bool, error) {
	free := idx.TXFree()
	if free == 0 {
		return false, nil
	}

	data, active, err := b.selectBytes(free)
	if err != nil || !active {
		return false, err
	}
	if len(data) == 0 {
		// A read that yielded no bytes but still flipped a flag (EOF,
		// a pipe hangup, or EOT at position 0): the cycle did something,
		// but there is nothing to write to the ring. A framing sequence
		// deferred for lack of room never gets here; selectBytes reports
		// it as inactive.
		return true, nil
	}

	byteAddr := func(i uint8) uint32 { return ring.TXByteAddr(b.cfg.Base, i) }
	segs := ring.SplitSegments(byteAddr, idx.TXWrite, uint16(len(data)))
	offset := 0
	for _, seg := range segs {
		chunk := data[offset : offset+int(seg.Len)]
		offset += int(seg.Len)
		if err := b.writeSegment(seg, chunk); err != nil {
			return false, err
		}
	}

	newWrite := idx.TXWrite + uint8(len(data))
	if err := b.cfg.Mem.WriteMem8(ring.TXWriteAddr(b.cfg.Base), []byte{newWrite}); err != nil {
		return false, wrap("advance TX write index", err)
	}
	return true, nil
}

// writeSegment issues the (head-bytes, word-body, tail-bytes) sub-transfers
// for one linear, non-wrapping segment (spec.md §4.C).
func (b *Bridge) writeSegment(seg ring.Segment, chunk []byte) error {
	offset := uint32(0)
	for _, xfer := range ring.SplitWrite(seg) {
		part := chunk[offset : offset+xfer.Len]
		var err error
		if xfer.Wide {
			err = b.cfg.Mem.WriteMem32(xfer.Addr, part)
		} else {
			err = b.cfg.Mem.WriteMem8(xfer.Addr, part)
		}
		if err != nil {
			return wrap("write TX ring", err)
		}
		offset += xfer.Len
	}
	return nil
}

// selectBytes implements the source-selection step of produce: framing
// sequences take priority over ordinary input, per spec.md §4.E step 1.
// The bool return reports whether the cycle should be considered active
// even when it yields zero bytes to write (e.g. quit was just set).
func (b *Bridge) selectBytes(free uint8) (data []byte, active bool, err error) {
	switch {
	case b.flags.NewFilePending.Load():
		if len(fsFrame) > int(free) {
			return nil, false, nil
		}
		b.flags.NewFilePending.Store(false)
		return []byte(fsFrame), true, nil

	case b.flags.EOFPending.Load():
		if len(emFrame) > int(free) {
			return nil, false, nil
		}
		b.flags.EOFPending.Store(false)
		return []byte(emFrame), true, nil

	default:
		return b.readInput(free)
	}
}

// readInput reads up to free bytes (capped at 255) from the active input
// source in non-blocking mode and applies the EOF discipline of
// spec.md §4.E step 2.
func (b *Bridge) readInput(free uint8) (data []byte, active bool, err error) {
	if b.cfg.StdinKind == StdinPipe && !b.input.IsUpload() {
		hangup, perr := pollHangup(b.input.Fd())
		if perr != nil {
			return nil, false, wrap("poll stdin", perr)
		}
		if hangup {
			b.flags.Quit.Store(true)
			return nil, true, nil
		}
	}

	n := int(free)
	if n > 255 {
		n = 255
	}
	buf := make([]byte, n)

	count, rerr := unix.Read(b.input.Fd(), buf)
	if rerr != nil {
		if rerr == unix.EAGAIN || rerr == unix.EINTR {
			return nil, false, nil
		}
		return nil, false, wrap("read input", rerr)
	}

	if count == 0 {
		if b.input.IsUpload() {
			b.input.CloseUpload()
			b.flags.EOFPending.Store(true)
			return nil, true, nil
		}
		b.flags.Quit.Store(true)
		return nil, true, nil
	}

	data = buf[:count]
	if b.cfg.StdinKind == StdinTTY && !b.input.IsUpload() {
		if i := bytes.IndexByte(data, ctrlEOT); i >= 0 {
			data = data[:i]
			b.flags.Quit.Store(true)
		}
	}
	return data, true, nil
}
