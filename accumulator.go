package xorpipe

import "crypto/subtle"

// Accumulator holds the XOR of every block contributed to the stage in
// progress. It is not safe for concurrent use; the coordinator only touches
// it under the barrier lock.
type Accumulator struct {
	buf    []byte
	maxLen int
}

// NewAccumulator creates a zeroed accumulator for blocks of up to blockSize bytes
func NewAccumulator(blockSize int) *Accumulator {
	return &Accumulator{buf: make([]byte, blockSize)}
}

// Fold XORs data into the first len(data) bytes of the accumulator.
// data must not be longer than the block size.
func (a *Accumulator) Fold(data []byte) {
	n := len(data)
	if n == 0 {
		return
	}
	subtle.XORBytes(a.buf[:n], a.buf[:n], data)
	if n > a.maxLen {
		a.maxLen = n
	}
}

// Bytes returns the combined block, which is as long as the longest
// contribution since the last Reset. The slice is only valid until Reset.
func (a *Accumulator) Bytes() []byte {
	return a.buf[:a.maxLen]
}

// Len returns the length of the combined block
func (a *Accumulator) Len() int {
	return a.maxLen
}

// Cap returns the block size
func (a *Accumulator) Cap() int {
	return len(a.buf)
}

// Reset zeroes the accumulator for the next stage. Only the prefix that was
// folded into can be non-zero.
func (a *Accumulator) Reset() {
	clear(a.buf[:a.maxLen])
	a.maxLen = 0
}
