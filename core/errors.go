package core

import (
	"errors"
	"fmt"
)

// ErrAborted is matched by every AbortedError
var ErrAborted = errors.New("run aborted")

// IOError is a failed read from a stream or a failed write to the sink
type IOError struct {
	Stream string
	Block  int
	Op     string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s block %d: %v", e.Op, e.Stream, e.Block, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// AllocationError means the stage table for a run could not be sized.
// It is only returned before any worker starts.
type AllocationError struct {
	Stages int64
	Reason string
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("cannot allocate %d stages: %s", e.Stages, e.Reason)
}

// ProtocolViolation is a programming error: a worker arrived at a stage it
// was not expected at
type ProtocolViolation struct {
	Stream string
	Stage  int
	Reason string
}

func (e *ProtocolViolation) Error() string {
	if e.Stream == "" {
		return fmt.Sprintf("protocol violation at stage %d: %s", e.Stage, e.Reason)
	}
	return fmt.Sprintf("protocol violation by %s at stage %d: %s", e.Stream, e.Stage, e.Reason)
}

// AbortedError is returned to a worker that was released because another
// part of the run failed
type AbortedError struct {
	Stream string
	Cause  error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stream, ErrAborted, e.Cause)
}

func (e *AbortedError) Unwrap() []error {
	return []error{ErrAborted, e.Cause}
}
