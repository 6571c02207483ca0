package xorpipe

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/creastat/xorpipe/core"
	"github.com/creastat/xorpipe/sources"
)

func TestBuilderDefaults(t *testing.T) {
	pipeline, err := NewBuilder().
		SetSink(io.Discard).
		Build()
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	if pipeline.BlockSize() != core.DefaultBlockSize {
		t.Errorf("expected default block size %d, got %d", core.DefaultBlockSize, pipeline.BlockSize())
	}
	if len(pipeline.sources) != 0 {
		t.Errorf("expected no sources, got %d", len(pipeline.sources))
	}
}

func TestBuilderFluentAPI(t *testing.T) {
	src := sources.NewReaderSource("ready", bytes.NewReader([]byte{1}), 1, 16)
	var tee bytes.Buffer

	pipeline, err := NewBuilder().
		SetBlockSize(16).
		SetMaxStages(100).
		AddSource(src).
		AddReader("wrapped", strings.NewReader("abc"), 3).
		SetSink(io.Discard).
		AddTee("copy", &tee).
		EnableDigest().
		SetLogger(testLogger()).
		Build()
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	if pipeline.BlockSize() != 16 {
		t.Errorf("expected block size 16, got %d", pipeline.BlockSize())
	}
	if pipeline.config.MaxStages != 100 {
		t.Errorf("expected max stages 100, got %d", pipeline.config.MaxStages)
	}
	if len(pipeline.sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(pipeline.sources))
	}
	if pipeline.sources[0] != src {
		t.Errorf("expected ready source first")
	}
	if pipeline.sources[1].Name() != "wrapped" || pipeline.sources[1].Length() != 3 {
		t.Errorf("unexpected wrapped source %s (%d)", pipeline.sources[1].Name(), pipeline.sources[1].Length())
	}
	if len(pipeline.tees) != 1 || !pipeline.digest {
		t.Errorf("expected one tee and digest enabled")
	}
}

func TestBuilderAddSources(t *testing.T) {
	srcs := []core.BlockSource{
		sources.NewReaderSource("a", strings.NewReader("a"), 1, 4),
		sources.NewReaderSource("b", strings.NewReader("b"), 1, 4),
		sources.NewReaderSource("c", strings.NewReader("c"), 1, 4),
	}

	pipeline, err := NewBuilder().
		SetBlockSize(4).
		AddSources(srcs...).
		SetSink(io.Discard).
		SetLogger(testLogger()).
		Build()
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}

	for i, name := range []string{"a", "b", "c"} {
		if pipeline.sources[i].Name() != name {
			t.Errorf("source %d: expected %s, got %s", i, name, pipeline.sources[i].Name())
		}
	}
}

func TestBuilderNoSink(t *testing.T) {
	_, err := NewBuilder().
		AddReader("a", strings.NewReader("a"), 1).
		Build()

	var validationErr ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(err.Error(), "pipeline validation failed") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestBuilderInvalidBlockSize(t *testing.T) {
	_, err := NewBuilder().
		SetBlockSize(0).
		AddReader("a", strings.NewReader("a"), 1).
		SetSink(io.Discard).
		Build()
	if err == nil {
		t.Fatal("expected error for zero block size")
	}
}

func TestBuilderDuplicateNames(t *testing.T) {
	_, err := NewBuilder().
		AddReader("same", strings.NewReader("a"), 1).
		AddReader("same", strings.NewReader("b"), 1).
		SetSink(io.Discard).
		Build()
	if err == nil || !strings.Contains(err.Error(), "same") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}
