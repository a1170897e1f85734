package faketarget

import (
	"bytes"

	"github.com/Crest/swdcom/internal/ring"
)

// Echo is a Firmware that copies every byte the host enqueues in the TX
// ring straight into the RX ring, byte for byte, stopping early if the RX
// ring fills up (it will catch up on a later Step once the host drains
// it).
type Echo struct{}

func (Echo) Step(m *Memory) {
	ix := m.Indices()
	used := ix.TXUsed()
	if used == 0 {
		return
	}
	free := ring.MaxUsed - int(ix.RXUsed())
	n := int(used)
	if free < n {
		n = free
	}
	for i := 0; i < n; i++ {
		b := m.TXRingByte(ix.TXRead + uint8(i))
		m.SetRXRingByte(ix.RXWrite+uint8(i), b)
	}
	ix.TXRead += uint8(n)
	ix.RXWrite += uint8(n)
	m.setIndices(ix)
}

// UploadScript simulates a Forth interpreter compiling an uploaded file:
// it drains the TX ring into a line buffer, recognizes the host's framing
// sequences ("\x1c\n$1c emit\n" and "\x19\n$19 emit\n") and echoes the
// bare control byte for each, and answers every other newline-terminated
// line with one ACK (0x06), or, once the 1-indexed content line number
// reaches FailAtLine, a single NAK (0x15) and nothing further.
type UploadScript struct {
	FailAtLine int

	buf    []byte
	lines  int
	failed bool
}

func (u *UploadScript) Step(m *Memory) {
	ix := m.Indices()
	used := ix.TXUsed()
	if used == 0 {
		return
	}
	for i := uint8(0); i < used; i++ {
		u.buf = append(u.buf, m.TXRingByte(ix.TXRead+i))
	}
	ix.TXRead += used
	m.setIndices(ix)
	u.drain(m)
}

func (u *UploadScript) drain(m *Memory) {
	for {
		idx := bytes.IndexByte(u.buf, '\n')
		if idx < 0 {
			return
		}
		line := u.buf[:idx]
		u.buf = u.buf[idx+1:]

		switch {
		case len(line) == 1 && line[0] == 0x1c:
			u.emit(m, 0x1c)
		case string(line) == "$1c emit":
			// the compiled command that produced the echo above; no
			// further reply.
		case len(line) == 1 && line[0] == 0x19:
			u.emit(m, 0x19)
		case string(line) == "$19 emit":
		case u.failed:
			// the upload already ended; the target ignores stray input.
		default:
			u.lines++
			if u.FailAtLine > 0 && u.lines == u.FailAtLine {
				u.failed = true
				u.emit(m, 0x15)
			} else {
				u.emit(m, 0x06)
			}
		}
	}
}

func (u *UploadScript) emit(m *Memory, b byte) {
	ix := m.Indices()
	if int(ring.MaxUsed)-int(ix.RXUsed()) == 0 {
		return
	}
	m.SetRXRingByte(ix.RXWrite, b)
	ix.RXWrite++
	m.setIndices(ix)
}
