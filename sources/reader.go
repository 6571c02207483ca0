package sources

import (
	"errors"
	"io"

	"github.com/creastat/xorpipe/core"
)

// ReaderSource cuts an io.Reader into fixed-size blocks
type ReaderSource struct {
	name   string
	r      io.Reader
	length int64
	buf    []byte

	// index is the position of the next block
	index int
	eof   bool
	done  bool
}

// NewReaderSource wraps r. length is the declared stream size, or
// core.LengthUnknown.
func NewReaderSource(name string, r io.Reader, length int64, blockSize int) *ReaderSource {
	return &ReaderSource{
		name:   name,
		r:      r,
		length: length,
		buf:    make([]byte, blockSize),
	}
}

// Name returns the stream name
func (s *ReaderSource) Name() string {
	return s.name
}

// Length returns the declared stream size
func (s *ReaderSource) Length() int64 {
	return s.length
}

// NextBlock reads the next block. The returned slice is reused by the
// following call.
func (s *ReaderSource) NextBlock() ([]byte, error) {
	if s.done {
		return nil, &core.ProtocolViolation{Stream: s.name, Stage: s.index, Reason: "read after end of stream"}
	}

	index := s.index
	s.index++

	if s.eof {
		s.done = true
		return s.buf[:0], nil
	}

	n, err := io.ReadFull(s.r, s.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.eof = true
	case errors.Is(err, io.EOF):
		s.done = true
	default:
		return nil, &core.IOError{Stream: s.name, Block: index, Op: "read", Err: err}
	}

	return s.buf[:n], nil
}
