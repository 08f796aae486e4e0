// Package history exports service status transitions to external
// analytics systems. Sinks are optional and strictly best-effort: a
// failing sink loses events, it never stalls the orchestrator.
package history

import (
	"context"
	"time"

	"studiod/internal/store"
)

// Event is one transition as shipped to a sink.
type Event struct {
	OccurredAt time.Time        `json:"occurred_at"`
	Transition store.Transition `json:"transition"`
}

// Sink is a destination for transition events. Implementations must be
// safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
