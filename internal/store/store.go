// Package store persists service status transitions so operators can see
// what happened to a service while no client was connected. Writes are
// best-effort; a failing store never blocks supervision.
package store

import (
	"context"
	"time"
)

// Transition is one observed status change for a named service.
type Transition struct {
	Service string    `json:"service"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"` // UTC
}

// Store is the minimal persistence interface for the transition log.
type Store interface {
	EnsureSchema(ctx context.Context) error
	RecordTransition(ctx context.Context, t Transition) error
	Recent(ctx context.Context, service string, limit int) ([]Transition, error)
	Close() error
}
