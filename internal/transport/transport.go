// Package transport defines the abstract memory-access contract a
// debugger backend must satisfy. The real backend (enumerating an
// ST-LINK/V2 over USB and driving it over SWD) is an external
// collaborator out of scope for this module; see NotImplementedMemory.
package transport

import "fmt"

// QBufLen is the minimum scratch-buffer capacity a Memory implementation
// must provide internally to stage one transfer: 256 payload bytes plus up
// to 4 bytes of alignment rounding.
const QBufLen = 260

// Memory is the capability set the bridge needs from a debugger. All
// transfers are synchronous; any error is fatal to the caller (§7).
type Memory interface {
	// ReadMem32 performs a 32-bit-aligned read of length bytes (a multiple
	// of 4) starting at addr (also a multiple of 4), returning exactly
	// length bytes.
	ReadMem32(addr uint32, length int) ([]byte, error)

	// WriteMem8 writes data (1-3 bytes) to addr without alignment
	// requirements.
	WriteMem8(addr uint32, data []byte) error

	// WriteMem32 writes data (a non-zero multiple of 4 bytes) to a
	// word-aligned addr.
	WriteMem32(addr uint32, data []byte) error

	// Halt stops the target core.
	Halt() error

	// Resume restarts the target core after Halt.
	Resume() error

	// Reset resets the target core.
	Reset() error

	// ReadRegister reads general-purpose register n. The target core must
	// be halted.
	ReadRegister(n int) (uint32, error)

	// Close releases the underlying debugger handle.
	Close() error
}

// ClockSetter is an optional capability: backends that can program the SWD
// clock rate implement it. cmd/swd2 type-asserts for it and treats a
// failure to set the rate as a warning, not a fatal error, matching
// original_source/swd2.c's open_or_die behavior.
type ClockSetter interface {
	SetClock(hz uint32) error
}

// Error wraps an underlying transport failure with the operation that
// produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// NotImplementedMemory documents the real-hardware contract without
// driving any USB/SWD hardware: every Memory method returns a descriptive
// error. It exists so cmd/swd2 has a concrete zero-value backend to
// report a clear diagnostic against when no other Memory implementation
// is wired in (real USB/SWD enumeration is out of scope for this module;
// see SPEC_FULL.md §1).
type NotImplementedMemory struct {
	Serial string
}

func (n *NotImplementedMemory) err(op string) error {
	return wrap(op, fmt.Errorf("no SWD debugger backend linked in (serial=%q); "+
		"wire a real transport.Memory implementation", n.Serial))
}

func (n *NotImplementedMemory) ReadMem32(addr uint32, length int) ([]byte, error) {
	return nil, n.err("ReadMem32")
}

func (n *NotImplementedMemory) WriteMem8(addr uint32, data []byte) error {
	return n.err("WriteMem8")
}

func (n *NotImplementedMemory) WriteMem32(addr uint32, data []byte) error {
	return n.err("WriteMem32")
}

func (n *NotImplementedMemory) Halt() error { return n.err("Halt") }

func (n *NotImplementedMemory) Resume() error { return n.err("Resume") }

func (n *NotImplementedMemory) Reset() error { return n.err("Reset") }

func (n *NotImplementedMemory) ReadRegister(r int) (uint32, error) {
	return 0, n.err("ReadRegister")
}

func (n *NotImplementedMemory) Close() error { return nil }
