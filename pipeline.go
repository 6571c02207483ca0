package xorpipe

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/xorpipe/core"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"
)

// Result describes a completed run
type Result struct {
	core.RunSummary

	// Streams holds per-stream statistics in input order
	Streams []StreamStats
}

// Pipeline XORs a fixed set of streams block by block into one sink.
// A Pipeline is built by Builder and runs once per Execute call.
type Pipeline struct {
	config  core.ReducerConfig
	sources []core.BlockSource
	sink    io.Writer
	tees    []FanOutBranch
	digest  bool
	logger  telemetry.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Execute runs one worker per source until every source is exhausted or a
// failure aborts the run. The returned error names the failing stream.
// Blocks flushed before a failure stay written.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	logger := p.logger.WithModule("pipeline")

	stages, elastic, err := p.stageCount()
	if err != nil {
		logger.Error("Cannot size stage table", telemetry.Err(err))
		return nil, err
	}

	output, hasher := p.output()

	result := &Result{
		RunSummary: core.RunSummary{StreamCount: len(p.sources)},
		Streams:    make([]StreamStats, len(p.sources)),
	}

	if err := p.notifyStarted(); err != nil {
		return nil, err
	}

	logger.Info("Starting run",
		telemetry.Int("streams", len(p.sources)),
		telemetry.Int("block_size", p.config.BlockSize),
		telemetry.Int("stages", stages),
		telemetry.Bool("elastic", elastic))

	if len(p.sources) == 0 {
		p.finish(result, hasher)
		return result, p.notifyFinished(result, nil)
	}

	coord, err := NewCoordinator(CoordinatorConfig{
		BlockSize: p.config.BlockSize,
		Barrier: core.BarrierConfig{
			Participants: len(p.sources),
			Stages:       stages,
			Elastic:      elastic,
			MaxStages:    int(p.config.MaxStages),
		},
		Sink:   output,
		Logger: p.logger,
	})
	if err != nil {
		logger.Error("Cannot create coordinator", telemetry.Err(err))
		return nil, p.notifyFinished(result, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer func() {
		cancel()
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
	}()

	g, groupCtx := errgroup.WithContext(runCtx)
	finished := make(chan struct{})

	// A parked worker cannot see a context, so cancellation and the first
	// worker failure both reach it through the barrier.
	go func() {
		select {
		case <-groupCtx.Done():
			coord.Abort(context.Cause(groupCtx))
		case <-finished:
		}
	}()

	workers := make([]*worker, len(p.sources))
	for i, source := range p.sources {
		w := newWorker(source, coord, p.logger)
		workers[i] = w
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					err = fmt.Errorf("worker %s panicked: %v\nStack trace:\n%s", source.Name(), r, buf[:n])
					w.stats.State = core.WorkerFailed
					w.stats.Err = err
					coord.Abort(err)
				}
			}()
			return w.run()
		})
	}

	err = g.Wait()
	close(finished)

	for i, w := range workers {
		result.Streams[i] = w.stats
	}
	result.Blocks, result.BytesWritten = coord.Totals()

	if err != nil {
		// Released workers report ErrAborted; the barrier holds the root cause.
		if cause := coord.Err(); cause != nil && errors.Is(err, core.ErrAborted) {
			err = cause
		}
		logger.Error("Run failed",
			telemetry.Int("blocks_written", result.Blocks),
			telemetry.Err(err))
		if notifyErr := p.notifyFinished(result, err); notifyErr != nil {
			logger.Warn("Failed to report run failure", telemetry.Err(notifyErr))
		}
		return result, err
	}

	if !coord.Finished() {
		err := fmt.Errorf("run ended with live workers")
		return result, p.notifyFinished(result, err)
	}

	p.finish(result, hasher)
	logger.Info("Run complete",
		telemetry.Int("blocks", result.Blocks),
		telemetry.Int("bytes", int(result.BytesWritten)),
		telemetry.String("digest", result.Digest))

	return result, p.notifyFinished(result, nil)
}

// stageCount sizes the stage table: one stage per block of the longest
// stream plus the stage at which it reports exhaustion
func (p *Pipeline) stageCount() (int, bool, error) {
	var maxBlocks int64
	elastic := false

	for _, source := range p.sources {
		length := source.Length()
		if length < 0 {
			elastic = true
			continue
		}
		if n := core.BlockCount(length, p.config.BlockSize); n > maxBlocks {
			maxBlocks = n
		}
	}

	stages := maxBlocks + 1
	if stages > math.MaxInt32 {
		return 0, false, &core.AllocationError{Stages: stages, Reason: "stage index overflow"}
	}
	if p.config.MaxStages > 0 && stages > p.config.MaxStages {
		return 0, false, &core.AllocationError{
			Stages: stages,
			Reason: fmt.Sprintf("exceeds limit of %d stages", p.config.MaxStages),
		}
	}
	return int(stages), elastic, nil
}

// output assembles the writer the coordinator flushes into
func (p *Pipeline) output() (io.Writer, *blake3.Hasher) {
	if len(p.tees) == 0 && !p.digest {
		return p.sink, nil
	}

	branches := []FanOutBranch{{Name: OutputName, Writer: p.sink}}
	branches = append(branches, p.tees...)

	var hasher *blake3.Hasher
	if p.digest {
		hasher = blake3.New()
		branches = append(branches, FanOutBranch{Name: "digest", Writer: hasher})
	}
	return NewFanOutWriter(branches...), hasher
}

func (p *Pipeline) finish(result *Result, hasher *blake3.Hasher) {
	if hasher != nil {
		result.Digest = hex.EncodeToString(hasher.Sum(nil))
	}
}

// observers returns the sink and tees that want run framing
func (p *Pipeline) observers() []core.RunObserver {
	var observers []core.RunObserver
	if o, ok := p.sink.(core.RunObserver); ok {
		observers = append(observers, o)
	}
	for _, tee := range p.tees {
		if o, ok := tee.Writer.(core.RunObserver); ok {
			observers = append(observers, o)
		}
	}
	return observers
}

func (p *Pipeline) notifyStarted() error {
	for _, o := range p.observers() {
		if err := o.RunStarted(len(p.sources), p.config.BlockSize); err != nil {
			return fmt.Errorf("start run: %w", err)
		}
	}
	return nil
}

// notifyFinished tells observers how the run ended and returns runErr, or
// the first observer failure if the run itself succeeded
func (p *Pipeline) notifyFinished(result *Result, runErr error) error {
	err := runErr
	for _, o := range p.observers() {
		if notifyErr := o.RunFinished(result.RunSummary, runErr); notifyErr != nil && err == nil {
			err = fmt.Errorf("finish run: %w", notifyErr)
		}
	}
	return err
}

// Cancel aborts a running Execute. Workers parked between blocks are
// released immediately; a worker blocked inside a read returns once the
// read does.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
}

// BlockSize returns the configured block size
func (p *Pipeline) BlockSize() int {
	return p.config.BlockSize
}
