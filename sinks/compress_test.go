package sinks

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/creastat/xorpipe/core"
	"github.com/spf13/afero"
	"pgregory.net/rapid"
)

func TestCompressorRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("xor blocks compress well "), 200)

	for _, codec := range []core.Codec{core.CodecNone, core.CodecZstd, core.CodecLZ4} {
		t.Run(string(codec), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewCompressor(&buf, codec)
			if err != nil {
				t.Fatalf("failed to create compressor: %v", err)
			}
			if _, err := w.Write(data); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("close failed: %v", err)
			}

			if codec != core.CodecNone && buf.Len() >= len(data) {
				t.Errorf("expected %s to shrink repetitive data, got %d bytes", codec, buf.Len())
			}

			r, err := NewDecompressor(&buf, codec)
			if err != nil {
				t.Fatalf("failed to create decompressor: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("round trip mismatch")
			}
		})
	}
}

func TestCompressorUnknownCodec(t *testing.T) {
	if _, err := NewCompressor(io.Discard, "brotli"); err == nil {
		t.Error("expected error for unknown codec")
	}
	if _, err := NewDecompressor(bytes.NewReader(nil), "brotli"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

// Property: zstd output decodes to the concatenation of the writes
func TestPropertyZstdRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		chunks := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 0, 256), 0, 8).Draw(rt, "chunks")

		var buf bytes.Buffer
		w, err := NewCompressor(&buf, core.CodecZstd)
		if err != nil {
			rt.Fatalf("failed to create compressor: %v", err)
		}
		var want []byte
		for _, chunk := range chunks {
			if _, err := w.Write(chunk); err != nil {
				rt.Fatalf("write failed: %v", err)
			}
			want = append(want, chunk...)
		}
		if err := w.Close(); err != nil {
			rt.Fatalf("close failed: %v", err)
		}

		r, err := NewDecompressor(&buf, core.CodecZstd)
		if err != nil {
			rt.Fatalf("failed to create decompressor: %v", err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			rt.Fatalf("read failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			rt.Fatalf("round trip mismatch")
		}
	})
}

func TestCreateFileTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/out", []byte("stale contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := CreateFile(fs, "/out")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := f.Write([]byte("new")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f.Close()

	got, err := afero.ReadFile(fs, "/out")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("expected truncated file, got %q", got)
	}
}

func TestCreateFileReadOnly(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())

	_, err := CreateFile(fs, "/out")
	var ioErr *core.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Op != "create" || ioErr.Stream != "/out" {
		t.Errorf("unexpected error details %+v", ioErr)
	}
	if ioErr.Err == nil {
		t.Errorf("expected wrapped cause")
	}
}
