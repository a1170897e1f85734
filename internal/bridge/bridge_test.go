package bridge

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/Crest/swdcom/internal/ring"
	"github.com/Crest/swdcom/internal/transport/faketarget"
	"golang.org/x/sys/unix"
)

const testBase = 0x2000_0000

// pipePair returns a non-blocking read end and a write end of an os.Pipe,
// registering cleanup with t.
func pipePair(t *testing.T) (read, write *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	if err := unix.SetNonblock(int(r.Fd()), true); err != nil {
		t.Fatalf("SetNonblock: %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

// drainN runs up to maxCycles (consume, produce) pairs against mem,
// stopping early once the bridge quits.
func drainN(t *testing.T, b *Bridge, mem *faketarget.Memory, maxCycles int) {
	t.Helper()
	for i := 0; i < maxCycles && !b.Quit(); i++ {
		idx := mem.Indices()
		if _, err := b.consume(idx); err != nil {
			t.Fatalf("consume: %v", err)
		}
		if _, err := b.produce(idx); err != nil {
			t.Fatalf("produce: %v", err)
		}
	}
}

func TestEchoRoundTrip(t *testing.T) {
	mem := faketarget.New(testBase, faketarget.Echo{})

	stdinRead, stdinWrite := pipePair(t)
	stdoutRead, stdoutWrite := pipePair(t)

	if _, err := stdinWrite.WriteString("hello\n"); err != nil {
		t.Fatalf("seed stdin: %v", err)
	}
	stdinWrite.Close()

	b := New(Config{
		Base:      testBase,
		Mem:       mem,
		Stderr:    &bytes.Buffer{},
		StdoutFD:  int(stdoutWrite.Fd()),
		StdinFD:   int(stdinRead.Fd()),
		StdinKind: StdinRegular,
	})

	drainN(t, b, mem, 4)

	if !b.Quit() {
		t.Fatal("expected quit after stdin EOF")
	}

	buf := make([]byte, 6)
	n, err := stdoutRead.Read(buf)
	if err != nil {
		t.Fatalf("read echoed stdout: %v", err)
	}
	if got := string(buf[:n]); got != "hello\n" {
		t.Fatalf("echoed stdout = %q, want %q", got, "hello\n")
	}
}

func TestTTYEOTTruncatesAndQuits(t *testing.T) {
	mem := faketarget.New(testBase, nil)

	stdinRead, stdinWrite := pipePair(t)
	if _, err := stdinWrite.WriteString("abc\x04def"); err != nil {
		t.Fatalf("seed stdin: %v", err)
	}
	stdinWrite.Close()

	b := New(Config{
		Base:      testBase,
		Mem:       mem,
		Stderr:    &bytes.Buffer{},
		StdoutFD:  int(os.Stdout.Fd()),
		StdinFD:   int(stdinRead.Fd()),
		StdinKind: StdinTTY,
	})

	idx := mem.Indices()
	active, err := b.produce(idx)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if !active {
		t.Fatal("expected produce to report activity")
	}
	if !b.Quit() {
		t.Fatal("expected EOT to set quit")
	}

	newIdx := mem.Indices()
	if newIdx.TXWrite != 3 {
		t.Fatalf("tx_w = %d, want 3 (\"abc\" only)", newIdx.TXWrite)
	}
	want := "abc"
	for i := 0; i < len(want); i++ {
		if got := mem.TXRingByte(uint8(i)); got != want[i] {
			t.Fatalf("TX ring byte %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestUploadCycleSuccess(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "upload-*.fs")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	script := ": square dup * ;\n: cube dup dup * * ;\n"
	if _, err := tmp.WriteString(script); err != nil {
		t.Fatalf("write upload file: %v", err)
	}
	tmp.Close()

	fw := &faketarget.UploadScript{}
	mem := faketarget.New(testBase, fw)

	stdinRead, _ := pipePair(t)
	stdoutRead, stdoutWrite := pipePair(t)

	b := New(Config{
		Base:       testBase,
		Mem:        mem,
		Stderr:     &bytes.Buffer{},
		StdoutFD:   int(stdoutWrite.Fd()),
		StdinFD:    int(stdinRead.Fd()),
		StdinKind:  StdinPipe,
		UploadPath: tmp.Name(),
	})

	b.flags.UploadRequested.Store(true)
	b.startUpload()
	if !b.input.IsUpload() {
		t.Fatal("expected input selector to switch to the upload file")
	}

	drainN(t, b, mem, 64)

	if b.input.IsUpload() {
		t.Fatal("expected upload to have completed and reverted to stdin")
	}
	if b.lineNum.Load() != -1 {
		t.Fatalf("lineNum = %d, want -1 after EM", b.lineNum.Load())
	}

	stdoutWrite.Close()
	var out bytes.Buffer
	buf := make([]byte, 512)
	for {
		n, err := stdoutRead.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	got := out.Bytes()
	ackCount := bytes.Count(got, []byte{0x06})
	if ackCount != 2 {
		t.Fatalf("stdout contains %d ACKs, want 2 (%q)", ackCount, got)
	}
	if bytes.ContainsRune(string(got), rune(0x15)) {
		t.Fatalf("stdout contains a NAK on a successful upload: %q", got)
	}
}

func TestUploadCycleFailureReportsLine(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "upload-*.fs")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	script := ": ok1 ;\n: bad ( garbage\n: ok2 ;\n"
	if _, err := tmp.WriteString(script); err != nil {
		t.Fatalf("write upload file: %v", err)
	}
	tmp.Close()

	fw := &faketarget.UploadScript{FailAtLine: 2}
	mem := faketarget.New(testBase, fw)

	stdinRead, _ := pipePair(t)
	stdoutRead, stdoutWrite := pipePair(t)

	var stderr bytes.Buffer
	b := New(Config{
		Base:       testBase,
		Mem:        mem,
		Stderr:     &stderr,
		StdoutFD:   int(stdoutWrite.Fd()),
		StdinFD:    int(stdinRead.Fd()),
		StdinKind:  StdinPipe,
		UploadPath: tmp.Name(),
	})

	b.flags.UploadRequested.Store(true)
	b.startUpload()

	drainN(t, b, mem, 64)

	if b.input.IsUpload() {
		t.Fatal("expected the NAK to end the upload")
	}
	// lineNum counts ACKs seen so far: one ACK for "ok1" precedes the NAK,
	// so the reported line is 1 (spec.md §4.F / §8 scenario 4), not the
	// ordinal position of the failing source line.
	if !bytes.Contains(stderr.Bytes(), []byte("Failure in line 1")) {
		t.Fatalf("stderr = %q, want a line-1 failure report", stderr.String())
	}

	stdoutWrite.Close()
	var out bytes.Buffer
	buf := make([]byte, 512)
	for {
		n, err := stdoutRead.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	if bytes.Count(out.Bytes(), []byte{0x15}) != 1 {
		t.Fatalf("stdout = %q, want exactly one NAK", out.Bytes())
	}
}

func TestWrapAroundDrain(t *testing.T) {
	mem := faketarget.New(testBase, nil)

	// Seed the RX ring directly so its write index has wrapped: 16 bytes
	// used, spanning [250,255] and [0,9].
	for i := 0; i < 16; i++ {
		mem.SetRXRingByte(uint8(250+i), byte('a'+i))
	}
	seedIndices(mem, ring.Indices{TXWrite: 0, TXRead: 0, RXWrite: 10, RXRead: 250})

	stdoutRead, stdoutWrite := pipePair(t)
	b := New(Config{
		Base:      testBase,
		Mem:       mem,
		Stderr:    &bytes.Buffer{},
		StdoutFD:  int(stdoutWrite.Fd()),
		StdinFD:   int(os.Stdin.Fd()),
		StdinKind: StdinRegular,
	})

	idx := mem.Indices()
	active, err := b.consume(idx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !active {
		t.Fatal("expected consume to report activity")
	}

	newIdx := mem.Indices()
	if newIdx.RXRead != 10 {
		t.Fatalf("rx_r = %d, want 10", newIdx.RXRead)
	}

	stdoutWrite.Close()
	var out bytes.Buffer
	buf := make([]byte, 64)
	for {
		n, err := stdoutRead.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	want := "abcdefghijklmnop"
	if out.String() != want {
		t.Fatalf("stdout = %q, want %q", out.String(), want)
	}
}

// TestIdleVsActiveCycles pins the two preconditions Run's pacing branch
// (loop.go) switches on: a cycle with nothing to drain or fill reports
// both consume and produce as inactive, while a cycle with pending stdin
// input reports produce as active. spec.md §8 scenario 6 backs off only
// once both are false for long enough.
func TestIdleVsActiveCycles(t *testing.T) {
	mem := faketarget.New(testBase, faketarget.Echo{})
	stdinRead, stdinWrite := pipePair(t)
	_, stdoutWrite := pipePair(t)

	b := New(Config{
		Base:      testBase,
		Mem:       mem,
		Stderr:    &bytes.Buffer{},
		StdoutFD:  int(stdoutWrite.Fd()),
		StdinFD:   int(stdinRead.Fd()),
		StdinKind: StdinPipe,
	})

	idx := mem.Indices()
	rxActive, err := b.consume(idx)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	txActive, err := b.produce(idx)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if rxActive || txActive {
		t.Fatalf("expected an idle cycle with no input, got rxActive=%v txActive=%v", rxActive, txActive)
	}

	if _, err := stdinWrite.WriteString("x"); err != nil {
		t.Fatalf("seed stdin: %v", err)
	}

	idx = mem.Indices()
	txActive, err = b.produce(idx)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if !txActive {
		t.Fatal("expected produce to be active once stdin has data")
	}
}

// TestRunIdleBackoff drives Run itself (not consume/produce in isolation)
// through an idle cycle by injecting a stepped Config.Now: the first two
// calls hold the clock still, the third jumps it past idleThreshold to
// land Run in the time.Sleep(idleSleep) branch of loop.go, and the fourth
// sets Quit so Run returns instead of looping forever. The test checks
// only how many times Run called Now(); it does not observe whether
// time.Sleep actually ran, since every call from the fourth on sets Quit.
func TestRunIdleBackoff(t *testing.T) {
	mem := faketarget.New(testBase, nil)
	stdinRead, _ := pipePair(t)
	_, stdoutWrite := pipePair(t)

	var b *Bridge
	start := time.Unix(0, 0)
	calls := 0
	const maxCalls = 8

	b = New(Config{
		Base:      testBase,
		Mem:       mem,
		Stderr:    &bytes.Buffer{},
		StdoutFD:  int(stdoutWrite.Fd()),
		StdinFD:   int(stdinRead.Fd()),
		StdinKind: StdinPipe,
		Now: func() time.Time {
			calls++
			switch {
			case calls <= 2:
				return start
			case calls == 3:
				return start.Add(idleThreshold + time.Millisecond)
			default:
				b.flags.Quit.Store(true)
				return start.Add(idleThreshold + time.Millisecond)
			}
		},
	})

	if err := b.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls < 4 {
		t.Fatalf("Run returned after only %d Now() calls, want at least 4 to have reached the idle-sleep branch", calls)
	}
	if calls > maxCalls {
		t.Fatalf("Run called Now() %d times, want it to have quit well before %d", calls, maxCalls)
	}
}

// seedIndices writes ix directly into mem's index word, bypassing the
// transport.Memory interface (test setup only; no production code does
// this).
func seedIndices(mem *faketarget.Memory, ix ring.Indices) {
	word := []byte{ix.TXWrite, ix.TXRead, ix.RXWrite, ix.RXRead}
	if err := mem.WriteMem32(testBase, word); err != nil {
		panic(err)
	}
}
