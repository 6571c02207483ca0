package protocol

// InputMessageType defines client-to-server message types
type InputMessageType string

const (
	// Control
	InputCancel InputMessageType = "control.cancel" // Abort the run in progress
)

// InputMessage represents a message from client
type InputMessage struct {
	Type      InputMessageType `json:"type"`
	ID        string           `json:"id"`    // Client-generated message ID
	RunID     string           `json:"runId"` // Run identifier
	Payload   any              `json:"payload,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// CancelPayload for control.cancel
type CancelPayload struct {
	Reason string `json:"reason,omitempty"`
}
