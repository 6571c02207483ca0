package sinks

import (
	"encoding/json"
	"fmt"

	"github.com/creastat/infra/telemetry"
	"github.com/creastat/xorpipe/core"
	"github.com/creastat/xorpipe/protocol"
	"github.com/gorilla/websocket"
)

// WebSocketSinkConfig holds WebSocket sink configuration
type WebSocketSinkConfig struct {
	Conn   *websocket.Conn
	RunID  string
	Logger telemetry.Logger
}

// WebSocketSink streams the combined output over a WebSocket connection.
// Each flushed block is sent as one binary message, framed by run.start and
// run.end (or error) JSON messages.
type WebSocketSink struct {
	config WebSocketSinkConfig
	logger telemetry.Logger
	frames int
	bytes  int64
}

// NewWebSocketSink creates a new WebSocket sink
func NewWebSocketSink(config WebSocketSinkConfig) *WebSocketSink {
	ws := &WebSocketSink{config: config}
	ws.logger = config.Logger.WithModule(ws.Name())
	return ws
}

// Name returns the sink name
func (ws *WebSocketSink) Name() string {
	return "websocket_sink"
}

// RunStarted sends the run.start message
func (ws *WebSocketSink) RunStarted(streams, blockSize int) error {
	ws.logger.Info("Starting WebSocket sink", telemetry.String("run_id", ws.config.RunID), telemetry.Int("streams", streams))
	return ws.sendJSON(protocol.NewRunStartMessage(ws.config.RunID, streams, blockSize))
}

// Write sends p as one binary message
func (ws *WebSocketSink) Write(p []byte) (int, error) {
	if err := ws.config.Conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		ws.logger.Error("Failed to send block", telemetry.String("run_id", ws.config.RunID), telemetry.Err(err))
		return 0, err
	}
	ws.frames++
	ws.bytes += int64(len(p))
	ws.logger.Trace("Sent block", telemetry.Int("frame", ws.frames), telemetry.Int("bytes", len(p)))
	return len(p), nil
}

// RunFinished sends run.end, or an error message if the run failed
func (ws *WebSocketSink) RunFinished(summary core.RunSummary, runErr error) error {
	if runErr != nil {
		ws.logger.Warn("Forwarding run failure to client", telemetry.String("run_id", ws.config.RunID), telemetry.Err(runErr))
		return ws.sendJSON(protocol.NewErrorMessage(ws.config.RunID, runErr))
	}

	ws.logger.Info("Forwarding run end to client",
		telemetry.String("run_id", ws.config.RunID),
		telemetry.Int("frames", ws.frames),
		telemetry.Int("bytes", int(ws.bytes)))
	return ws.sendJSON(protocol.NewRunEndMessage(ws.config.RunID, summary))
}

// Frames returns the number of binary messages sent
func (ws *WebSocketSink) Frames() int {
	return ws.frames
}

// WatchControl reads client messages until the connection fails and calls
// cancel when the client sends control.cancel. It is the connection's only
// reader and runs in its own goroutine.
func (ws *WebSocketSink) WatchControl(cancel func()) error {
	for {
		mt, data, err := ws.config.Conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg protocol.InputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			ws.logger.Warn("Ignoring malformed control message", telemetry.Err(err))
			continue
		}

		switch msg.Type {
		case protocol.InputCancel:
			ws.logger.Info("Client cancelled run", telemetry.String("run_id", ws.config.RunID))
			cancel()
		default:
			ws.logger.Debug("Ignoring control message", telemetry.String("type", string(msg.Type)))
		}
	}
}

func (ws *WebSocketSink) sendJSON(msg *protocol.OutputMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msg.Type, err)
	}
	if err := ws.config.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s message: %w", msg.Type, err)
	}
	return nil
}
