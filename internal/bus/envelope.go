// Package bus is the plugin side of the host's message bus: JSON envelopes
// over a websocket, with commands acknowledged by the host.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"aivoice/internal/host"
)

type Kind string

const (
	// Host to plugin.
	KindMessage Kind = "message"
	KindAction  Kind = "action"
	KindAck     Kind = "ack"

	// Plugin to host.
	KindRegister Kind = "register"
	KindCommand  Kind = "command"
	KindText     Kind = "text"
	KindResult   Kind = "result"
)

// Text targets.
const (
	TargetStream = "stream"
	TargetGroup  = "group"
	TargetUser   = "user"
)

type Envelope struct {
	ID             string           `json:"id,omitempty"`
	ReplyTo        string           `json:"reply_to,omitempty"`
	From           string           `json:"from"`
	To             string           `json:"to,omitempty"`
	Kind           Kind             `json:"kind"`
	Name           string           `json:"name,omitempty"`
	Stream         *host.ChatStream `json:"stream,omitempty"`
	Target         string           `json:"target,omitempty"`
	Content        string           `json:"content,omitempty"`
	Args           map[string]any   `json:"args,omitempty"`
	OK             bool             `json:"ok,omitempty"`
	Error          string           `json:"error,omitempty"`
	StorageMessage bool             `json:"storage_message,omitempty"`
	Payload        json.RawMessage  `json:"payload,omitempty"`
}

func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, errors.New("envelope without kind")
	}
	return &env, nil
}

// Message converts an inbound message envelope.
func (e *Envelope) Message() (host.Message, error) {
	if e.Stream == nil {
		return host.Message{}, fmt.Errorf("%s envelope %q without stream", e.Kind, e.ID)
	}
	return host.Message{Stream: *e.Stream, Text: e.Content}, nil
}
