package sources

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/creastat/xorpipe/core"
	"github.com/spf13/afero"
	"pgregory.net/rapid"
)

func drain(t *testing.T, s core.BlockSource) [][]byte {
	t.Helper()
	var blocks [][]byte
	for {
		block, err := s.NextBlock()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(block) == 0 {
			return blocks
		}
		blocks = append(blocks, append([]byte(nil), block...))
	}
}

func TestReaderSourceBlocks(t *testing.T) {
	s := NewReaderSource("in", bytes.NewReader([]byte("abcdefghij")), 10, 4)

	blocks := drain(t, s)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if string(blocks[0]) != "abcd" || string(blocks[1]) != "efgh" || string(blocks[2]) != "ij" {
		t.Errorf("unexpected blocks %q", blocks)
	}
	if s.Name() != "in" || s.Length() != 10 {
		t.Errorf("unexpected metadata %s/%d", s.Name(), s.Length())
	}
}

func TestReaderSourceExactMultiple(t *testing.T) {
	s := NewReaderSource("in", bytes.NewReader([]byte("abcdefgh")), 8, 4)

	blocks := drain(t, s)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
}

func TestReaderSourceEmpty(t *testing.T) {
	s := NewReaderSource("empty", bytes.NewReader(nil), 0, 4)

	block, err := s.NextBlock()
	if err != nil || len(block) != 0 {
		t.Fatalf("expected empty block, got %q (%v)", block, err)
	}
}

func TestReaderSourceOneByteReader(t *testing.T) {
	s := NewReaderSource("slow", iotest.OneByteReader(bytes.NewReader([]byte("abcdefg"))), 7, 3)

	blocks := drain(t, s)
	if len(blocks) != 3 || string(blocks[0]) != "abc" || string(blocks[2]) != "g" {
		t.Errorf("expected full blocks despite one-byte reads, got %q", blocks)
	}
}

func TestReaderSourceReadError(t *testing.T) {
	readErr := errors.New("device gone")
	s := NewReaderSource("flaky", iotest.ErrReader(readErr), 4, 4)

	_, err := s.NextBlock()
	var ioErr *core.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Stream != "flaky" || ioErr.Op != "read" || ioErr.Block != 0 {
		t.Errorf("unexpected error details %+v", ioErr)
	}
	if !errors.Is(err, readErr) {
		t.Errorf("expected underlying error in chain")
	}
}

func TestReaderSourceReadAfterEnd(t *testing.T) {
	s := NewReaderSource("in", bytes.NewReader([]byte("ab")), 2, 4)
	drain(t, s)

	_, err := s.NextBlock()
	var violation *core.ProtocolViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected ProtocolViolation, got %v", err)
	}
	if violation.Stage != 2 {
		t.Errorf("expected violation at block 2, got %d", violation.Stage)
	}
}

// Property: concatenated blocks reproduce the input, only the last block may
// be short, and the block count matches BlockCount
func TestPropertyReaderSourceReassembles(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		blockSize := rapid.IntRange(1, 32).Draw(rt, "blockSize")
		data := rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(rt, "data")

		s := NewReaderSource("in", bytes.NewReader(data), int64(len(data)), blockSize)

		var joined []byte
		count := 0
		for {
			block, err := s.NextBlock()
			if err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
			if len(block) == 0 {
				break
			}
			if len(block) > blockSize {
				rt.Fatalf("block of %d bytes exceeds %d", len(block), blockSize)
			}
			if len(block) < blockSize && len(joined)+len(block) != len(data) {
				rt.Fatalf("short block %d before end of data", count)
			}
			joined = append(joined, block...)
			count++
		}

		if !bytes.Equal(joined, data) {
			rt.Fatalf("reassembled data differs")
		}
		if int64(count) != core.BlockCount(int64(len(data)), blockSize) {
			rt.Fatalf("expected %d blocks, got %d", core.BlockCount(int64(len(data)), blockSize), count)
		}
	})
}

func TestOpenFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a", []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/b", nil, 0o644); err != nil {
		t.Fatal(err)
	}

	srcs, closeAll, err := OpenFiles(fs, []string{"/a", "/b"}, 2)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer closeAll()

	if len(srcs) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(srcs))
	}
	if srcs[0].Name() != "/a" || srcs[0].Length() != 5 {
		t.Errorf("unexpected source %s (%d)", srcs[0].Name(), srcs[0].Length())
	}
	if srcs[1].Length() != 0 {
		t.Errorf("expected empty file length 0, got %d", srcs[1].Length())
	}
	if blocks := drain(t, srcs[0]); len(blocks) != 3 {
		t.Errorf("expected 3 blocks, got %d", len(blocks))
	}
}

func TestOpenFilesMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := OpenFiles(fs, []string{"/a", "/missing"}, 2)
	var ioErr *core.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Stream != "/missing" || ioErr.Op != "open" {
		t.Errorf("unexpected error details %+v", ioErr)
	}
}
