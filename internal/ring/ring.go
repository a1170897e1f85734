// Package ring implements the addressing and index arithmetic for the two
// single-producer/single-consumer byte rings that make up the on-target
// control block: a 4-byte index word at the base address, followed by a
// 256-byte TX (host->target) ring and a 256-byte RX (target->host) ring.
package ring

import "encoding/binary"

const (
	// PayloadSize is the capacity, in bytes, of one ring's backing array.
	// One slot is always reserved to distinguish empty from full, so a
	// ring can hold at most PayloadSize-1 bytes.
	PayloadSize = 256

	// IndexSize is the size of the four-byte index word at the base
	// address.
	IndexSize = 4

	// TXOffset is the offset of the TX ring's first byte from the base
	// address.
	TXOffset = IndexSize

	// RXOffset is the offset of the RX ring's first byte from the base
	// address.
	RXOffset = IndexSize + PayloadSize

	// BlockSize is the total size of the control block: index word plus
	// both rings.
	BlockSize = IndexSize + 2*PayloadSize

	// MaxUsed is the largest number of bytes a single ring can hold.
	MaxUsed = PayloadSize - 1
)

// Indices is the decoded form of the four-byte index word at the base
// address. Each field wraps modulo 256.
type Indices struct {
	TXWrite uint8 // host write index into the TX ring
	TXRead  uint8 // target read index from the TX ring
	RXWrite uint8 // target write index into the RX ring
	RXRead  uint8 // host read index from the RX ring
}

// DecodeIndices decodes the little-endian index word into its four
// constituent bytes, in the order they are laid out in target memory:
// tx_w, tx_r, rx_w, rx_r.
func DecodeIndices(word uint32) Indices {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], word)
	return Indices{
		TXWrite: buf[0],
		TXRead:  buf[1],
		RXWrite: buf[2],
		RXRead:  buf[3],
	}
}

// TXUsed returns the number of bytes currently enqueued in the TX ring.
func (ix Indices) TXUsed() uint8 {
	return ix.TXWrite - ix.TXRead
}

// TXFree returns the number of bytes the host may still write into the TX
// ring this cycle.
func (ix Indices) TXFree() uint8 {
	return MaxUsed - ix.TXUsed()
}

// RXUsed returns the number of bytes the target has produced into the RX
// ring that the host has not yet consumed.
func (ix Indices) RXUsed() uint8 {
	return ix.RXWrite - ix.RXRead
}

// IndexWordAddr returns the address of the four-byte index word.
func IndexWordAddr(base uint32) uint32 {
	return base
}

// TXWriteAddr returns the address of the single-byte TX write index
// (tx_w), the only TX index byte the host ever advances.
func TXWriteAddr(base uint32) uint32 {
	return base + 0
}

// RXReadAddr returns the address of the single-byte RX read index
// (rx_r), the only RX index byte the host ever advances.
func RXReadAddr(base uint32) uint32 {
	return base + 3
}

// TXByteAddr returns the address of byte i (i in [0,255]) of the TX ring.
func TXByteAddr(base uint32, i uint8) uint32 {
	return base + TXOffset + uint32(i)
}

// RXByteAddr returns the address of byte i (i in [0,255]) of the RX ring.
func RXByteAddr(base uint32, i uint8) uint32 {
	return base + RXOffset + uint32(i)
}
