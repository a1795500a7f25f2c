package hub

import (
	"encoding/json"
	"fmt"
)

// Message is an opaque outbound text payload. The hub never parses it.
type Message []byte

// MessageType names the envelopes producers put on the wire.
type MessageType string

const (
	MessageTypeDrawing        MessageType = "drawing"
	MessageTypeAnalysisResult MessageType = "analysis_result"
	MessageTypeKeepAlive      MessageType = "keepalive"
	MessageTypeConnected      MessageType = "connected"
)

// Envelope is the `{type, payload}` shape clients switch on.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// NewEnvelopeMessage encodes payload inside an Envelope of the given type.
func NewEnvelopeMessage(msgType MessageType, payload any) (Message, error) {
	if msgType == "" {
		return nil, fmt.Errorf("message type cannot be empty")
	}

	data, err := json.Marshal(Envelope{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", msgType, err)
	}
	return Message(data), nil
}

// String returns the payload as text.
func (m Message) String() string {
	return string(m)
}
