package sinks

import (
	"fmt"
	"io"

	"github.com/creastat/xorpipe/core"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// NewCompressor wraps w so that everything written to the result is encoded
// with codec. Close flushes the encoder but does not close w.
func NewCompressor(w io.Writer, codec core.Codec) (io.WriteCloser, error) {
	switch codec {
	case core.CodecNone, "":
		return nopCloser{w}, nil
	case core.CodecZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return encoder, nil
	case core.CodecLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
}

// NewDecompressor is the inverse of NewCompressor
func NewDecompressor(r io.Reader, codec core.Codec) (io.Reader, error) {
	switch codec {
	case core.CodecNone, "":
		return r, nil
	case core.CodecZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		return decoder.IOReadCloser(), nil
	case core.CodecLZ4:
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", codec)
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
