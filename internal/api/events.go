package api

import (
	"encoding/json"
	"fmt"

	"shipdeck/internal/stream"
)

// Stream event type tags shared by the deploy and rollback streams.
const (
	EventLog            = "log"
	EventProgress       = "progress"
	EventStart          = "start"
	EventServerComplete = "server_complete"
	EventError          = "error"
	EventDone           = "done"
	EventComplete       = "complete"
)

// LogEvent is a human-readable line from the backend build/deploy log.
type LogEvent struct {
	Message string `json:"message"`
}

// ProgressEvent reports backend progress as a 0-100 percentage.
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// ServerCompleteEvent marks one server as finished during a rollback.
type ServerCompleteEvent struct {
	IP      string `json:"ip"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorEvent is a non-terminal error notice within a stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

// DoneEvent is the terminal event of a deploy stream. Success is a
// payload field, not a transport status: a stream can complete cleanly
// and still report failure here.
type DoneEvent struct {
	Success       bool            `json:"success"`
	Servers       []ServerOutcome `json:"servers"`
	Domain        string          `json:"domain,omitempty"`
	ContainerName string          `json:"container_name,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// CompleteEvent is the terminal event of a rollback stream.
type CompleteEvent struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Servers []ServerOutcome `json:"servers,omitempty"`
}

// DecodePayload unmarshals an event's raw JSON into the typed payload
// for its tag.
func DecodePayload(event stream.Event, into any) error {
	if err := json.Unmarshal(event.Raw, into); err != nil {
		return fmt.Errorf("decoding %q event payload: %w", event.Type, err)
	}
	return nil
}
