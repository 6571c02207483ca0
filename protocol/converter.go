package protocol

import (
	"errors"
	"time"

	"github.com/creastat/xorpipe/core"
)

// NewRunStartMessage creates a run.start message
func NewRunStartMessage(runID string, streams, blockSize int) *OutputMessage {
	return &OutputMessage{
		Type:  OutputRunStart,
		ID:    generateMessageID(),
		RunID: runID,
		Payload: RunStartPayload{
			Streams:   streams,
			BlockSize: blockSize,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewRunEndMessage creates a run.end message from a run summary
func NewRunEndMessage(runID string, summary core.RunSummary) *OutputMessage {
	return &OutputMessage{
		Type:  OutputRunEnd,
		ID:    generateMessageID(),
		RunID: runID,
		Payload: RunEndPayload{
			Blocks: summary.Blocks,
			Bytes:  summary.BytesWritten,
			Digest: summary.Digest,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewErrorMessage creates an error message, classifying err by its type
func NewErrorMessage(runID string, err error) *OutputMessage {
	return &OutputMessage{
		Type:  OutputError,
		ID:    generateMessageID(),
		RunID: runID,
		Payload: ErrorPayload{
			Code:    ErrorCode(err),
			Message: err.Error(),
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

// ErrorCode maps a run error to its wire code
func ErrorCode(err error) string {
	var ioErr *core.IOError
	var violation *core.ProtocolViolation

	switch {
	case errors.As(err, &ioErr):
		return ErrorCodeIO
	case errors.As(err, &violation):
		return ErrorCodeProtocol
	case errors.Is(err, core.ErrAborted):
		return ErrorCodeAborted
	default:
		return ErrorCodeInternal
	}
}

// generateMessageID generates a unique message ID
func generateMessageID() string {
	return "msg-" + time.Now().Format("20060102150405.000000")
}
