package bridge

import (
	"fmt"

	"github.com/Crest/swdcom/internal/ring"
	"golang.org/x/sys/unix"
)

// consume drains whatever the target has produced into the RX ring,
// writes it to stdout, and feeds it to the control parser. It implements
// spec.md §4.D, with the REDESIGN FLAGS §9 correction applied: a failed
// ReadMem32 here is fatal, matching the write path's existing behavior
// (the original source silently ignored this error).
func (b *Bridge) consume(idx ring.Indices) (bool, error) {
	used := idx.RXUsed()
	if used == 0 {
		return false, nil
	}

	byteAddr := func(i uint8) uint32 { return ring.RXByteAddr(b.cfg.Base, i) }
	segs := ring.SplitSegments(byteAddr, idx.RXRead, uint16(used))

	for _, seg := range segs {
		readAddr, readLen, offset := ring.SplitRead(seg)
		buf, err := b.cfg.Mem.ReadMem32(readAddr, int(readLen))
		if err != nil {
			return false, wrap("read RX ring", err)
		}
		valid := buf[offset : offset+seg.Len]

		if err := writeAllRetry(b.cfg.StdoutFD, valid); err != nil {
			return false, wrap("write stdout", err)
		}
		b.parseControl(valid)
	}

	newRead := idx.RXWrite
	if err := b.cfg.Mem.WriteMem8(ring.RXReadAddr(b.cfg.Base), []byte{newRead}); err != nil {
		return false, wrap("advance RX read index", err)
	}
	return true, nil
}

// writeAllRetry writes buf to fd in full, retrying on EINTR/EAGAIN and
// treating any other error as fatal (spec.md §4.D/§7).
func writeAllRetry(fd int, buf []byte) error {
	for len(buf) > 0 {
		n, err := unix.Write(fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return fmt.Errorf("write(%d, %d bytes): %w", fd, len(buf), err)
		}
		buf = buf[n:]
	}
	return nil
}
