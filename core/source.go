package core

// LengthUnknown is reported by sources that cannot tell their size up front
const LengthUnknown int64 = -1

// BlockSource produces successive blocks of a single input stream.
// A source is owned by exactly one worker and is never shared.
type BlockSource interface {
	// Name identifies the stream in logs and errors
	Name() string

	// Length returns the total stream size in bytes, or LengthUnknown
	Length() int64

	// NextBlock returns up to BlockSize bytes. A block shorter than BlockSize
	// is only returned at the end of data, and an empty block signals
	// exhaustion. NextBlock must not be called after an empty block.
	NextBlock() ([]byte, error)
}

// BlockCount returns how many non-empty blocks a stream of the given length
// produces with the given block size
func BlockCount(length int64, blockSize int) int64 {
	if length <= 0 {
		return 0
	}
	bs := int64(blockSize)
	return (length + bs - 1) / bs
}
