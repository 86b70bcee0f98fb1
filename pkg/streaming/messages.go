// Package streaming defines the messages sent to a live debug viewer over
// WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/hlvr/vrcore/pkg/core"
)

// Message type constants of the streaming protocol.
const (
	TypeStartSession     = "start_session"
	TypeEndSession       = "end_session"
	TypeFrameStats       = "frame_stats"
	TypeControllerSample = "controller_sample"
	TypeAck              = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the viewer's acknowledgement of a lifecycle message.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload carries the session being streamed.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// Encode builds a JSON envelope around payload.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// Decode splits an envelope into its type and raw payload.
func Decode(data []byte) (string, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, err
	}
	return env.Type, env.Payload, nil
}
