package protocol

// OutputMessageType defines server-to-client message types
type OutputMessageType string

const (
	// Lifecycle
	OutputRunStart OutputMessageType = "run.start" // Reduction started, binary block frames follow
	OutputRunEnd   OutputMessageType = "run.end"   // All blocks sent

	// Errors
	OutputError OutputMessageType = "error"
)

// OutputMessage represents a message to client
type OutputMessage struct {
	Type      OutputMessageType `json:"type"`
	ID        string            `json:"id"`    // Server-generated message ID
	RunID     string            `json:"runId"` // Run identifier
	Payload   any               `json:"payload"`
	Timestamp int64             `json:"timestamp"`
}

// RunStartPayload for run.start
type RunStartPayload struct {
	Streams   int `json:"streams"`   // Number of input streams
	BlockSize int `json:"blockSize"` // Maximum size of each binary frame
}

// RunEndPayload for run.end
// Note: the output bytes themselves are sent as raw binary WebSocket messages
type RunEndPayload struct {
	Blocks int    `json:"blocks"`
	Bytes  int64  `json:"bytes"`
	Digest string `json:"digest,omitempty"` // BLAKE3 of the output, hex
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeIO       = "io_error"
	ErrorCodeAborted  = "aborted"
	ErrorCodeProtocol = "protocol_violation"
	ErrorCodeInternal = "internal"
)
