package xorpipe

import (
	"fmt"
	"io"
)

// FanOutBranch is one destination of a FanOutWriter
type FanOutBranch struct {
	Name   string
	Writer io.Writer
}

// FanOutWriter copies every flushed block to each branch, in branch order.
// A failed or short write on any branch fails the whole write, so the run
// aborts rather than leaving the branches out of step.
type FanOutWriter struct {
	branches []FanOutBranch
	written  []int64
}

// NewFanOutWriter creates a fan-out writer over the given branches
func NewFanOutWriter(branches ...FanOutBranch) *FanOutWriter {
	return &FanOutWriter{
		branches: branches,
		written:  make([]int64, len(branches)),
	}
}

// Write implements io.Writer
func (fw *FanOutWriter) Write(p []byte) (int, error) {
	for i, branch := range fw.branches {
		n, err := branch.Writer.Write(p)
		fw.written[i] += int64(n)
		if err != nil {
			return 0, fmt.Errorf("branch %s: %w", branch.Name, err)
		}
		if n != len(p) {
			return 0, fmt.Errorf("branch %s: %w", branch.Name, io.ErrShortWrite)
		}
	}
	return len(p), nil
}

// Written returns the bytes accepted by the named branch
func (fw *FanOutWriter) Written(name string) int64 {
	for i, branch := range fw.branches {
		if branch.Name == name {
			return fw.written[i]
		}
	}
	return 0
}

// Branches returns the branch names in write order
func (fw *FanOutWriter) Branches() []string {
	names := make([]string, len(fw.branches))
	for i, branch := range fw.branches {
		names[i] = branch.Name
	}
	return names
}
