// Package faketarget implements a minimal in-process transport.Memory
// backed by a plain byte array, paired with a pluggable Firmware that
// reacts to host writes the way a real target would. It exists so
// internal/bridge can be exercised end to end (the seed scenarios in
// SPEC_FULL.md §8) without real ST-LINK/V2 hardware.
package faketarget

import (
	"encoding/binary"
	"fmt"

	"github.com/Crest/swdcom/internal/ring"
)

// Firmware reacts to host-issued writes. Step is invoked synchronously
// after every WriteMem8/WriteMem32 call, standing in for the independent
// polling a real microcontroller would do on its own clock.
type Firmware interface {
	Step(m *Memory)
}

// Memory is a transport.Memory backed by an in-process byte array holding
// exactly one control block (ring.BlockSize bytes) at Base.
type Memory struct {
	Base      uint32
	block     [ring.BlockSize]byte
	fw        Firmware
	registers [16]uint32
	halted    bool
	resets    int
	clockHz   uint32
	closed    bool
}

// New returns a fake target whose control block lives at base and whose
// firmware behavior is driven by fw (nil is allowed for tests that only
// exercise raw memory access).
func New(base uint32, fw Firmware) *Memory {
	return &Memory{Base: base, fw: fw}
}

func (m *Memory) offset(addr uint32, length int) (int, error) {
	off := int64(addr) - int64(m.Base)
	if off < 0 || off+int64(length) > int64(len(m.block)) {
		return 0, fmt.Errorf("address %#x length %d out of range for control block at %#x", addr, length, m.Base)
	}
	return int(off), nil
}

func (m *Memory) ReadMem32(addr uint32, length int) ([]byte, error) {
	if addr%4 != 0 || length%4 != 0 {
		return nil, fmt.Errorf("ReadMem32(%#x, %d) is not 32-bit aligned", addr, length)
	}
	off, err := m.offset(addr, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.block[off:off+length])
	return out, nil
}

func (m *Memory) WriteMem8(addr uint32, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("WriteMem8(%#x) with empty data", addr)
	}
	off, err := m.offset(addr, len(data))
	if err != nil {
		return err
	}
	copy(m.block[off:], data)
	m.step()
	return nil
}

func (m *Memory) WriteMem32(addr uint32, data []byte) error {
	if addr%4 != 0 || len(data)%4 != 0 || len(data) == 0 {
		return fmt.Errorf("WriteMem32(%#x, len=%d) is not 32-bit aligned", addr, len(data))
	}
	off, err := m.offset(addr, len(data))
	if err != nil {
		return err
	}
	copy(m.block[off:], data)
	m.step()
	return nil
}

func (m *Memory) step() {
	if m.fw != nil {
		m.fw.Step(m)
	}
}

func (m *Memory) Halt() error   { m.halted = true; return nil }
func (m *Memory) Resume() error { m.halted = false; return nil }
func (m *Memory) Reset() error  { m.resets++; return nil }
func (m *Memory) Close() error  { m.closed = true; return nil }

// SetClock implements transport.ClockSetter.
func (m *Memory) SetClock(hz uint32) error {
	m.clockHz = hz
	return nil
}

func (m *Memory) ReadRegister(n int) (uint32, error) {
	if n < 0 || n >= len(m.registers) {
		return 0, fmt.Errorf("register %d out of range", n)
	}
	return m.registers[n], nil
}

// SetRegister seeds register n, e.g. R11 holding the control block base
// address per SPEC_FULL.md §3/§11.
func (m *Memory) SetRegister(n int, v uint32) {
	m.registers[n] = v
}

// Resets reports how many times Reset was called, for assertions.
func (m *Memory) Resets() int { return m.resets }

// Halted reports the last Halt/Resume state, for assertions.
func (m *Memory) Halted() bool { return m.halted }

// Indices returns the currently decoded index word.
func (m *Memory) Indices() ring.Indices {
	return ring.DecodeIndices(binary.LittleEndian.Uint32(m.block[0:4]))
}

func (m *Memory) setIndices(ix ring.Indices) {
	m.block[0] = ix.TXWrite
	m.block[1] = ix.TXRead
	m.block[2] = ix.RXWrite
	m.block[3] = ix.RXRead
}

// TXRingByte reads byte i of the TX ring directly (firmware-side access).
func (m *Memory) TXRingByte(i uint8) byte {
	return m.block[ring.TXOffset+int(i)]
}

// SetRXRingByte writes byte i of the RX ring directly (firmware-side
// access).
func (m *Memory) SetRXRingByte(i uint8, b byte) {
	m.block[ring.RXOffset+int(i)] = b
}
