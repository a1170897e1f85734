package bridge

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Crest/swdcom/internal/ring"
)

// Pacing constants from spec.md §4.H. Named, not magic, so the observable
// throughput parity the spec asks for is easy to audit.
const (
	idleThreshold = 100 * time.Millisecond
	idleSleep     = 10 * time.Millisecond
)

// Run drives the single-threaded cooperative polling loop until Quit is
// set, implementing spec.md §4.H verbatim: read indices once, offer them
// to consume then produce, service reset/upload requests, then pace.
func (b *Bridge) Run() error {
	b.lastActive = b.now()

	for !b.flags.Quit.Load() {
		word, err := b.readIndexWord()
		if err != nil {
			return err
		}
		idx := ring.DecodeIndices(word)

		if b.DebugTrace != nil {
			b.DebugTrace(DebugIndices(idx))
		}

		rxActive, err := b.consume(idx)
		if err != nil {
			return err
		}
		txActive, err := b.produce(idx)
		if err != nil {
			return err
		}

		now := b.now()

		if b.flags.ResetRequested.Load() {
			if err := b.performReset(); err != nil {
				return err
			}
		}
		if b.flags.UploadRequested.Load() && !b.input.IsUpload() {
			b.startUpload()
		}

		if rxActive || txActive {
			b.lastActive = now
		} else if now.Sub(b.lastActive) > idleThreshold {
			time.Sleep(idleSleep)
		}
	}
	return nil
}

func (b *Bridge) readIndexWord() (uint32, error) {
	buf, err := b.cfg.Mem.ReadMem32(ring.IndexWordAddr(b.cfg.Base), ring.IndexSize)
	if err != nil {
		return 0, wrap("read ring indices", err)
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// performReset implements spec.md §4.H's reset flow: reset, resume, then
// a fixed diagnostic on stderr.
func (b *Bridge) performReset() error {
	b.flags.ResetRequested.Store(false)
	if err := b.cfg.Mem.Reset(); err != nil {
		return wrap("reset target", err)
	}
	if err := b.cfg.Mem.Resume(); err != nil {
		return wrap("resume target", err)
	}
	fmt.Fprint(b.cfg.Stderr, "\nRESET\n")
	return nil
}

// startUpload implements spec.md §4.G: open the upload file, arm
// new_file_pending, clear upload_requested. A failure to open is
// recoverable: report it and stay on stdin.
func (b *Bridge) startUpload() {
	b.flags.UploadRequested.Store(false)
	if err := b.input.OpenUpload(b.cfg.UploadPath); err != nil {
		fmt.Fprintf(b.cfg.Stderr, "Failed to open %s: %v.\n", b.cfg.UploadPath, err)
		return
	}
	b.flags.NewFilePending.Store(true)
}

// DebugIndices renders one line describing the decoded ring indices,
// matching original_source/swd2.c's debug_indicies format (SPEC_FULL.md
// §9).
func DebugIndices(idx ring.Indices) string {
	return fmt.Sprintf("TX: r=%d, w=%d, f=%d RX: r=%d, w=%d, u=%d",
		idx.TXRead, idx.TXWrite, idx.TXFree(), idx.RXRead, idx.RXWrite, idx.RXUsed())
}
