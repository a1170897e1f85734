// Package bridge implements the host-side polling loop that turns a
// transport.Memory into a bidirectional console stream: draining the
// target's RX ring to stdout, filling its TX ring from stdin or an upload
// file, interpreting the in-band control protocol, and reacting to
// signals and idle periods. See SPEC_FULL.md §4 for the component design.
package bridge

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/Crest/swdcom/internal/transport"
)

// StdinKind classifies the real stdin descriptor, decided once at
// startup per SPEC_FULL.md §6/§4.G.
type StdinKind int

const (
	StdinTTY StdinKind = iota
	StdinPipe
	StdinRegular
)

// Flags holds the single-writer/single-reader loop-control booleans
// described in spec.md §3: signal handlers and the control parser are the
// sole writers, the loop in Run is the sole reader.
type Flags struct {
	Quit            atomic.Bool
	ResetRequested  atomic.Bool
	UploadRequested atomic.Bool
	NewFilePending  atomic.Bool
	EOFPending      atomic.Bool
}

// Config carries the fixed, immutable-after-construction parameters of a
// Bridge.
type Config struct {
	// Base is the control block's base address in target memory.
	Base uint32

	// Mem is the transport the loop drives. Must not be touched from
	// outside Run once the bridge is started (internal/bridge/signals.go
	// never calls it, per spec.md §5).
	Mem transport.Memory

	// Stderr receives diagnostics; normally os.Stderr, overridable for
	// tests.
	Stderr io.Writer

	// StdoutFD and StdinFD are the raw descriptors for console output and
	// the initial input source. consume/produce operate on them directly
	// with the EAGAIN/EINTR retry discipline spec.md §4.D/§4.E call for,
	// below the buffering an io.Writer/io.Reader would impose.
	StdoutFD int
	StdinFD  int

	// StdinKind is the classification of the real stdin descriptor.
	StdinKind StdinKind

	// UploadPath is the file opened on an upload request; defaults to
	// "./upload.fs" per spec.md §6 if empty.
	UploadPath string

	// Now returns the current time; defaults to time.Now. Tests inject a
	// fake clock to exercise idle pacing deterministically.
	Now func() time.Time
}

// Bridge is the host-side state machine described in spec.md §3.
type Bridge struct {
	cfg Config

	flags   Flags
	lineNum atomic.Int32 // -1 = no upload in progress

	input *InputSelector

	lastActive time.Time
	now        func() time.Time

	// DebugTrace, when non-nil, receives one line per loop cycle
	// describing the decoded indices (original_source/swd2.c's dead
	// debug_indicies helper, given a real call site; SPEC_FULL.md §9).
	DebugTrace func(line string)
}

// New constructs a Bridge ready to Run. cfg.Mem and cfg.Stderr must be
// non-nil.
func New(cfg Config) *Bridge {
	if cfg.UploadPath == "" {
		cfg.UploadPath = "./upload.fs"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Bridge{
		cfg:   cfg,
		input: newInputSelector(cfg.StdinFD),
		now:   cfg.Now,
	}
	b.lineNum.Store(-1)
	return b
}

// Quit reports whether the loop has been asked to stop.
func (b *Bridge) Quit() bool { return b.flags.Quit.Load() }
