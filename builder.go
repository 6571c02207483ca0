package xorpipe

import (
	"fmt"
	"io"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/xorpipe/core"
	"github.com/creastat/xorpipe/sources"
)

// Builder assembles a Pipeline with a fluent API
type Builder struct {
	config    core.ReducerConfig
	inputs    []inputConfig
	sink      io.Writer
	tees      []FanOutBranch
	digest    bool
	logger    telemetry.Logger
	loggerSet bool
}

// inputConfig holds either a ready source or a reader to wrap once the
// block size is final
type inputConfig struct {
	source core.BlockSource
	name   string
	reader io.Reader
	length int64
}

// NewBuilder creates a builder with the default block size
func NewBuilder() *Builder {
	return &Builder{
		config: core.ReducerConfig{BlockSize: core.DefaultBlockSize},
		inputs: make([]inputConfig, 0),
	}
}

// SetBlockSize sets the number of bytes combined per stage
func (b *Builder) SetBlockSize(size int) *Builder {
	b.config.BlockSize = size
	return b
}

// SetMaxStages caps the stage table; zero removes the cap
func (b *Builder) SetMaxStages(stages int64) *Builder {
	b.config.MaxStages = stages
	return b
}

// AddSource appends an input stream. Streams are combined in the order added.
func (b *Builder) AddSource(source core.BlockSource) *Builder {
	b.inputs = append(b.inputs, inputConfig{source: source})
	return b
}

// AddSources appends several input streams
func (b *Builder) AddSources(srcs ...core.BlockSource) *Builder {
	for _, source := range srcs {
		b.AddSource(source)
	}
	return b
}

// AddReader appends an input stream read from r. Pass core.LengthUnknown
// when the length is not known up front.
func (b *Builder) AddReader(name string, r io.Reader, length int64) *Builder {
	b.inputs = append(b.inputs, inputConfig{name: name, reader: r, length: length})
	return b
}

// SetSink sets the writer that receives the combined stream
func (b *Builder) SetSink(w io.Writer) *Builder {
	b.sink = w
	return b
}

// AddTee adds a writer that receives a copy of every flushed block
func (b *Builder) AddTee(name string, w io.Writer) *Builder {
	b.tees = append(b.tees, FanOutBranch{Name: name, Writer: w})
	return b
}

// EnableDigest computes a BLAKE3 digest of the output
func (b *Builder) EnableDigest() *Builder {
	b.digest = true
	return b
}

// SetLogger sets the logger used by the pipeline and its workers
func (b *Builder) SetLogger(logger telemetry.Logger) *Builder {
	b.logger = logger
	b.loggerSet = true
	return b
}

// Build validates the configuration and creates the pipeline
func (b *Builder) Build() (*Pipeline, error) {
	srcs := make([]core.BlockSource, len(b.inputs))
	for i, input := range b.inputs {
		switch {
		case input.source != nil:
			srcs[i] = input.source
		case input.reader != nil:
			if b.config.BlockSize > 0 {
				srcs[i] = sources.NewReaderSource(input.name, input.reader, input.length, b.config.BlockSize)
			}
		}
	}

	if err := ValidateConfig(b.config, srcs, b.sink, b.tees); err != nil {
		return nil, fmt.Errorf("pipeline validation failed: %w", err)
	}

	logger := b.logger
	if !b.loggerSet {
		logger = telemetry.New(telemetry.Config{Level: "info"})
	}

	return &Pipeline{
		config:  b.config,
		sources: srcs,
		sink:    b.sink,
		tees:    append([]FanOutBranch(nil), b.tees...),
		digest:  b.digest,
		logger:  logger,
	}, nil
}
