package xorpipe

import (
	"errors"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/xorpipe/core"
)

// StreamStats reports what one worker did during a run
type StreamStats struct {
	Name    string
	Blocks  int
	Bytes   int64
	Waits   int
	Flushes int
	State   core.WorkerState
	Err     error
}

// worker drives one BlockSource through the coordinator:
// Reading -> Contributing -> {Waiting -> Reading, Retired}. Any error is
// terminal and moves the worker to Failed.
type worker struct {
	source core.BlockSource
	coord  *Coordinator
	logger telemetry.Logger
	stats  StreamStats
}

func newWorker(source core.BlockSource, coord *Coordinator, logger telemetry.Logger) *worker {
	return &worker{
		source: source,
		coord:  coord,
		logger: logger.WithModule("worker"),
		stats: StreamStats{
			Name:  source.Name(),
			State: core.WorkerReading,
		},
	}
}

// run loops until the source is exhausted or something fails
func (w *worker) run() error {
	name := w.source.Name()

	for index := 0; ; index++ {
		w.transition(core.WorkerReading, index)
		data, err := w.source.NextBlock()
		if err != nil {
			var ioErr *core.IOError
			var violation *core.ProtocolViolation
			if !errors.As(err, &ioErr) && !errors.As(err, &violation) {
				err = &core.IOError{Stream: name, Block: index, Op: "read", Err: err}
			}
			return w.fail(index, err)
		}

		w.transition(core.WorkerContributing, index)
		role, err := w.coord.Contribute(name, index, data)
		if err != nil {
			return w.fail(index, err)
		}

		if len(data) > 0 {
			w.stats.Blocks++
			w.stats.Bytes += int64(len(data))
		}

		switch role {
		case core.RoleRetired:
			w.transition(core.WorkerRetired, index)
			w.logger.Debug("Stream exhausted",
				telemetry.String("stream", name),
				telemetry.Int("blocks", w.stats.Blocks))
			return nil
		case core.RoleFlusher:
			w.stats.Flushes++
		case core.RoleFollower:
			w.stats.Waits++
			w.transition(core.WorkerWaiting, index)
		}
	}
}

// fail records a terminal error and aborts the run so no other worker stays
// parked on a stage that can no longer complete
func (w *worker) fail(index int, err error) error {
	w.stats.State = core.WorkerFailed
	w.stats.Err = err

	if errors.Is(err, core.ErrAborted) {
		w.logger.Debug("Released by abort", telemetry.String("stream", w.source.Name()), telemetry.Int("block", index))
		return err
	}

	w.logger.Error("Worker failed",
		telemetry.String("stream", w.source.Name()),
		telemetry.Int("block", index),
		telemetry.Err(err))
	w.coord.Abort(err)
	return err
}

func (w *worker) transition(state core.WorkerState, index int) {
	w.stats.State = state
	w.logger.Trace("Worker state",
		telemetry.String("stream", w.source.Name()),
		telemetry.String("state", string(state)),
		telemetry.Int("block", index))
}
