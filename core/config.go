package core

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultBlockSize is the block size used when none is configured (1 MiB)
const DefaultBlockSize = 1024 * 1024

// ReducerConfig configures a reduction run
type ReducerConfig struct {
	// BlockSize is the number of bytes combined per stage
	BlockSize int

	// MaxStages caps the stage table. Zero means no cap beyond what fits in
	// an int.
	MaxStages int64
}

// BarrierConfig sizes a reduction barrier
type BarrierConfig struct {
	// Participants is the number of workers expected at stage 0
	Participants int

	// Stages is the initial length of the stage table
	Stages int

	// Elastic lets the stage table grow when a participant registers past
	// its end. Used when some stream lengths are unknown.
	Elastic bool

	// MaxStages bounds elastic growth. Zero means unbounded.
	MaxStages int
}

// Codec names an output compression format
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// JobConfig describes a run loaded from a YAML job file
type JobConfig struct {
	Output    string   `yaml:"output"`
	Inputs    []string `yaml:"inputs"`
	BlockSize int      `yaml:"block_size"`
	Compress  Codec    `yaml:"compress"`
	Digest    bool     `yaml:"digest"`
	LogLevel  string   `yaml:"log_level"`
}

// LoadJob reads and decodes a job file, filling in defaults
func LoadJob(fs afero.Fs, path string) (*JobConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	job := &JobConfig{}
	if err := yaml.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("parse job file %s: %w", path, err)
	}

	if job.BlockSize == 0 {
		job.BlockSize = DefaultBlockSize
	}
	if job.Compress == "" {
		job.Compress = CodecNone
	}
	if job.LogLevel == "" {
		job.LogLevel = "info"
	}

	switch job.Compress {
	case CodecNone, CodecZstd, CodecLZ4:
	default:
		return nil, fmt.Errorf("job file %s: unknown codec %q", path, job.Compress)
	}

	return job, nil
}
