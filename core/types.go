package core

// Role describes how a worker left a Contribute call
type Role string

const (
	// RoleFollower waited for another worker to flush the block
	RoleFollower Role = "follower"

	// RoleFlusher was the last arriver and wrote the block to the sink
	RoleFlusher Role = "flusher"

	// RoleRetired contributed an empty block and will not visit further stages
	RoleRetired Role = "retired"
)

// WorkerState is a step in a worker's lifecycle
type WorkerState string

const (
	WorkerReading      WorkerState = "reading"
	WorkerContributing WorkerState = "contributing"
	WorkerWaiting      WorkerState = "waiting"
	WorkerRetired      WorkerState = "retired"
	WorkerFailed       WorkerState = "failed"
)

// Terminal reports whether no further transitions leave this state
func (s WorkerState) Terminal() bool {
	return s == WorkerRetired || s == WorkerFailed
}

// Block is one fixed-size slice of a stream, addressed by its index.
// An empty Data marks the end of the stream.
type Block struct {
	Index int
	Data  []byte
}

// Last reports whether the block marks stream exhaustion
func (b Block) Last() bool {
	return len(b.Data) == 0
}

// RunSummary describes a finished run
type RunSummary struct {
	StreamCount  int
	Blocks       int
	BytesWritten int64
	Digest       string
}

// RunObserver is implemented by sinks that want to frame a run, such as
// network sinks that announce the start and end of the output stream
type RunObserver interface {
	RunStarted(streams, blockSize int) error
	RunFinished(summary RunSummary, runErr error) error
}
