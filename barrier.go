package xorpipe

import (
	"fmt"
	"sync"

	"github.com/creastat/xorpipe/core"
)

// ReleaseFunc runs under the barrier lock when the last expected participant
// arrives at a stage. A non-nil error aborts the barrier.
type ReleaseFunc func(stage int) error

// stageBarrier tracks the participants still due at one stage
type stageBarrier struct {
	expected int
	cond     *sync.Cond
}

// ReductionBarrier is a per-stage barrier whose population shrinks as
// participants retire. Every participant visits stages 0, 1, 2... in order.
// Arriving at a stage with more work to come registers the participant for
// the next stage before anything can be released, so a stage cannot complete
// while a live participant has yet to reach it. The last arriver at a stage
// runs the release action and advances the cursor.
//
// All state, including whatever the fold and release callbacks touch, is
// guarded by one mutex.
type ReductionBarrier struct {
	mu      sync.Mutex
	config  core.BarrierConfig
	stages  []stageBarrier
	release ReleaseFunc

	// cursor is the index of the stage currently eligible to release
	cursor int

	// live counts participants that have not retired
	live int

	err error
}

// NewReductionBarrier creates a barrier expecting config.Participants
// arrivals at stage 0
func NewReductionBarrier(config core.BarrierConfig, release ReleaseFunc) (*ReductionBarrier, error) {
	if config.Participants <= 0 {
		return nil, fmt.Errorf("reduction barrier needs at least one participant, got %d", config.Participants)
	}
	if config.Stages <= 0 {
		return nil, &core.AllocationError{Stages: int64(config.Stages), Reason: "stage table must hold at least one stage"}
	}
	if config.MaxStages > 0 && config.Stages > config.MaxStages {
		return nil, &core.AllocationError{
			Stages: int64(config.Stages),
			Reason: fmt.Sprintf("exceeds limit of %d stages", config.MaxStages),
		}
	}

	b := &ReductionBarrier{
		config:  config,
		stages:  make([]stageBarrier, config.Stages),
		release: release,
		live:    config.Participants,
	}
	b.stages[0].expected = config.Participants
	b.stages[0].cond = sync.NewCond(&b.mu)
	return b, nil
}

// Arrive records that participant stream reached stage. fold runs first,
// under the lock. continuing reports whether the participant will visit the
// next stage; a participant that is not continuing retires and never waits.
//
// If this arrival completes the stage, the release action runs and Arrive
// returns RoleFlusher (or RoleRetired if the participant is also done).
// Otherwise a continuing participant blocks until the stage is released and
// returns RoleFollower.
func (b *ReductionBarrier) Arrive(stream string, stage int, continuing bool, fold func()) (core.Role, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return "", &core.AbortedError{Stream: stream, Cause: b.err}
	}
	if err := b.checkArrival(stream, stage, continuing); err != nil {
		b.abortLocked(err)
		return "", err
	}

	if fold != nil {
		fold()
	}

	b.stages[stage].expected--
	if continuing {
		b.register(stage + 1)
	} else {
		b.live--
	}

	if b.stages[stage].expected == 0 {
		if b.release != nil {
			if err := b.release(stage); err != nil {
				b.abortLocked(err)
				return "", err
			}
		}
		b.cursor = stage + 1
		if b.cursor < len(b.stages) && b.stages[b.cursor].cond != nil {
			b.stages[b.cursor].cond.Broadcast()
		}
		if !continuing {
			return core.RoleRetired, nil
		}
		return core.RoleFlusher, nil
	}

	if !continuing {
		return core.RoleRetired, nil
	}

	next := b.stages[stage+1].cond
	for b.cursor <= stage && b.err == nil {
		next.Wait()
	}
	if b.err != nil {
		return "", &core.AbortedError{Stream: stream, Cause: b.err}
	}
	return core.RoleFollower, nil
}

// checkArrival rejects arrivals that break the visiting order. Called with
// the lock held, before any state is touched.
func (b *ReductionBarrier) checkArrival(stream string, stage int, continuing bool) error {
	if stage != b.cursor {
		return &core.ProtocolViolation{
			Stream: stream,
			Stage:  stage,
			Reason: fmt.Sprintf("arrived while stage %d is open", b.cursor),
		}
	}
	if stage >= len(b.stages) || b.stages[stage].expected <= 0 {
		return &core.ProtocolViolation{Stream: stream, Stage: stage, Reason: "no participant expected"}
	}
	if continuing && stage+1 >= len(b.stages) {
		if !b.config.Elastic {
			return &core.ProtocolViolation{
				Stream: stream,
				Stage:  stage,
				Reason: fmt.Sprintf("stream outgrew the %d-stage table", len(b.stages)),
			}
		}
		if b.config.MaxStages > 0 && stage+1 >= b.config.MaxStages {
			return &core.AllocationError{
				Stages: int64(stage + 2),
				Reason: fmt.Sprintf("exceeds limit of %d stages", b.config.MaxStages),
			}
		}
	}
	return nil
}

// register adds one expected participant to stage, growing an elastic table
func (b *ReductionBarrier) register(stage int) {
	if stage == len(b.stages) {
		b.stages = append(b.stages, stageBarrier{})
	}
	st := &b.stages[stage]
	if st.cond == nil {
		st.cond = sync.NewCond(&b.mu)
	}
	st.expected++
}

// Abort fails the barrier and wakes every waiting participant. Only the
// first cause is kept.
func (b *ReductionBarrier) Abort(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.abortLocked(err)
}

func (b *ReductionBarrier) abortLocked(err error) {
	if b.err != nil || err == nil {
		return
	}
	b.err = err
	for i := b.cursor; i < len(b.stages); i++ {
		if b.stages[i].cond != nil {
			b.stages[i].cond.Broadcast()
		}
	}
}

// Err returns the abort cause, if any
func (b *ReductionBarrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Cursor returns the index of the stage currently eligible to release
func (b *ReductionBarrier) Cursor() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Expected returns how many participants are still due at stage
func (b *ReductionBarrier) Expected(stage int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stage < 0 || stage >= len(b.stages) {
		return 0
	}
	return b.stages[stage].expected
}

// Live returns the number of participants that have not retired
func (b *ReductionBarrier) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// Stages returns the current length of the stage table
func (b *ReductionBarrier) Stages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.stages)
}

// Finished reports whether every participant has retired
func (b *ReductionBarrier) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live == 0
}

// withLock runs fn while holding the barrier lock
func (b *ReductionBarrier) withLock(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}
