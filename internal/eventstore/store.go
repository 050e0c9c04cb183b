// Package eventstore persists build history events in SQLite so past full,
// lazy and incremental builds can be inspected after the process exits.
package eventstore

import (
	"context"
	"time"
)

// Store is an append-only log of build events.
type Store interface {
	Append(ctx context.Context, ev Event) error
	// GetByBuildID returns the events of one build session in append order.
	GetByBuildID(ctx context.Context, buildID string) ([]Event, error)
	// GetRange returns events timestamped within [start, end], oldest first.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)
	Close() error
}
