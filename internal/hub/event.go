package hub

import (
	"time"

	"studiod/internal/registry"
)

// Event types on the server→client stream.
const (
	EventSnapshot = "services:snapshot"
	EventUpdate   = "services:update"
	EventError    = "services:error"
)

// Command types on the client→server stream.
const (
	CmdStart = "services:start"
	CmdStop  = "services:stop"
)

// Event is one server→client message. Data carries a single public view
// for updates, or the full table for the connect-time snapshot.
type Event struct {
	Type      string                         `json:"type"`
	Service   string                         `json:"service,omitempty"`
	Data      *registry.PublicView           `json:"data,omitempty"`
	Services  map[string]registry.PublicView `json:"services,omitempty"`
	Error     string                         `json:"error,omitempty"`
	Timestamp int64                          `json:"timestamp"`
}

// Command is one client→server message; the payload is the bare service
// name.
type Command struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

func now() int64 { return time.Now().UnixMilli() }

func updateEvent(name string, view registry.PublicView) Event {
	return Event{Type: EventUpdate, Service: name, Data: &view, Timestamp: now()}
}

func errorEvent(name, msg string) Event {
	return Event{Type: EventError, Service: name, Error: msg, Timestamp: now()}
}

func snapshotEvent(views map[string]registry.PublicView) Event {
	return Event{Type: EventSnapshot, Services: views, Timestamp: now()}
}
