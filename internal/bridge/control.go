package bridge

import "fmt"

// In-band control bytes the target sends back on the RX channel,
// per spec.md §4.F.
const (
	ctrlEOT byte = 0x04 // end of transmission: target asks the host to quit
	ctrlACK byte = 0x06 // one source line consumed successfully
	ctrlNAK byte = 0x15 // compile failure on the current line
	ctrlCAN byte = 0x18 // cancel the upload unconditionally
	ctrlEM  byte = 0x19 // no upload in progress (end of upload, or idle)
	ctrlFS  byte = 0x1c // upload started
)

// The literal synchronization sequences the host injects at upload
// open/close: a control byte followed by the Forth command that echoes it
// back on RX, per spec.md §4.E/§6.
const (
	fsFrame = "\x1c\n$1c emit\n"
	emFrame = "\x19\n$19 emit\n"
)

// parseControl scans bytes already emitted to stdout for in-band control
// codes and mutates loop flags accordingly. It never alters what was
// written to stdout; this pass is purely observational (spec.md §4.F).
func (b *Bridge) parseControl(data []byte) {
	for _, c := range data {
		switch c {
		case ctrlEOT:
			b.flags.Quit.Store(true)
		case ctrlACK:
			if b.lineNum.Load() >= 0 {
				b.lineNum.Add(1)
			}
		case ctrlNAK:
			if n := b.lineNum.Load(); n >= 0 {
				fmt.Fprintf(b.cfg.Stderr, "\n*** Failure in line %d. ***\n", n)
			}
			b.endUpload()
		case ctrlCAN:
			b.endUpload()
		case ctrlEM:
			b.lineNum.Store(-1)
		case ctrlFS:
			b.lineNum.Store(0)
		}
	}
}

// endUpload closes an in-progress upload file and arms eof_pending so the
// EM framing sequence is sent on the next produce cycle (spec.md §4.F).
func (b *Bridge) endUpload() {
	if !b.input.IsUpload() {
		return
	}
	b.input.CloseUpload()
	b.flags.EOFPending.Store(true)
}
