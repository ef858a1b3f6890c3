package web

import (
	"time"

	"github.com/prestige-dev/prestige/internal/directive"
	"github.com/prestige-dev/prestige/internal/problems"
)

// Event types
const (
	EventTypeProgress    = "progress"
	EventTypeOperations  = "operations"
	EventTypeReport      = "report"
	EventTypeCommand     = "command"
	EventTypeIntegration = "integration"
	EventTypeComplete    = "complete"
	EventTypeError       = "error"
	EventTypeSystem      = "system"

	// Incoming client message types
	MessageTypeCancel = "cancel"
)

// Event is one message sent over the WebSocket to observers.
type Event struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Attempt   int                    `json:"attempt,omitempty"`
	Content   string                 `json:"content,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`

	Operations []*directive.Operation `json:"operations,omitempty"`
	Problems   []problems.Problem     `json:"problems,omitempty"`
}

// ClientMessage is one message received from a connected client.
type ClientMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id,omitempty"`
}
