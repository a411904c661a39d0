package server

import (
	"encoding/json"
	"time"
)

// MessageType identifies a websocket message.
type MessageType string

const (
	// Server → client
	TypeEvent MessageType = "event"
	TypeError MessageType = "error"

	// Client → server
	TypeSubscribe MessageType = "subscribe"
)

// Message is the websocket envelope. Payloads ride in Data as raw JSON so
// each type decodes its own shape.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// EventData carries one fired notification kind. The event itself has no
// payload; clients refetch state to see what changed.
type EventData struct {
	Kind string `json:"kind"`
}

// ErrorData carries a rejected request back to the client.
type ErrorData struct {
	Error string `json:"error"`
}

// SubscribeData narrows the event kinds a websocket connection receives.
type SubscribeData struct {
	Kinds []string `json:"kinds"`
}
