package xorpipe

import (
	"fmt"
	"io"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/xorpipe/core"
)

// OutputName identifies the sink in IOErrors
const OutputName = "output"

// CoordinatorConfig holds configuration for a Coordinator
type CoordinatorConfig struct {
	BlockSize int
	Barrier   core.BarrierConfig
	Sink      io.Writer
	Logger    telemetry.Logger
}

// Coordinator owns the state shared by all workers of a run: the
// accumulator, the reduction barrier and the output sink. Contribute is the
// only operation workers call.
type Coordinator struct {
	config  CoordinatorConfig
	logger  telemetry.Logger
	acc     *Accumulator
	barrier *ReductionBarrier

	// guarded by the barrier lock
	written int64
	blocks  int
}

// NewCoordinator creates a coordinator and its stage table
func NewCoordinator(config CoordinatorConfig) (*Coordinator, error) {
	if config.BlockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", config.BlockSize)
	}
	if config.Sink == nil {
		return nil, fmt.Errorf("coordinator needs a sink")
	}

	c := &Coordinator{
		config: config,
		logger: config.Logger.WithModule("coordinator"),
		acc:    NewAccumulator(config.BlockSize),
	}

	barrier, err := NewReductionBarrier(config.Barrier, c.flush)
	if err != nil {
		return nil, err
	}
	c.barrier = barrier
	return c, nil
}

// Contribute folds one block from stream into the stage at index and blocks
// until every live worker has contributed to that stage. An empty block
// retires the worker; it returns without waiting.
func (c *Coordinator) Contribute(stream string, index int, data []byte) (core.Role, error) {
	if len(data) > c.config.BlockSize {
		err := &core.ProtocolViolation{
			Stream: stream,
			Stage:  index,
			Reason: fmt.Sprintf("block of %d bytes exceeds block size %d", len(data), c.config.BlockSize),
		}
		c.barrier.Abort(err)
		return "", err
	}

	return c.barrier.Arrive(stream, index, len(data) > 0, func() {
		c.acc.Fold(data)
	})
}

// flush is the barrier's release action: append the combined block to the
// sink and reset the accumulator. Runs under the barrier lock.
func (c *Coordinator) flush(stage int) error {
	data := c.acc.Bytes()
	if len(data) > 0 {
		n, err := c.config.Sink.Write(data)
		if err == nil && n < len(data) {
			err = io.ErrShortWrite
		}
		if err != nil {
			c.logger.Error("Failed to write block", telemetry.Int("block", stage), telemetry.Err(err))
			return &core.IOError{Stream: OutputName, Block: stage, Op: "write", Err: err}
		}
		c.written += int64(n)
		c.blocks++
	}

	c.logger.Trace("Flushed block", telemetry.Int("block", stage), telemetry.Int("bytes", len(data)))
	c.acc.Reset()
	return nil
}

// Abort fails the run and releases every waiting worker
func (c *Coordinator) Abort(err error) {
	c.barrier.Abort(err)
}

// Err returns the first failure recorded by the run
func (c *Coordinator) Err() error {
	return c.barrier.Err()
}

// Finished reports whether every worker has retired
func (c *Coordinator) Finished() bool {
	return c.barrier.Finished()
}

// Totals returns the number of non-empty blocks flushed and the bytes written
func (c *Coordinator) Totals() (blocks int, written int64) {
	c.barrier.withLock(func() {
		blocks, written = c.blocks, c.written
	})
	return blocks, written
}
