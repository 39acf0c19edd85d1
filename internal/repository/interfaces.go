package repository

import (
	"context"
	"database/sql"

	"github.com/itsadi-24/smart-note/internal/observer"
)

// EventRepository stores lifecycle events. Events are only ever appended.
// Every repository is also usable as an event sink.
type EventRepository interface {
	observer.EventSink

	// EnsureSchema creates the events table if it does not exist
	EnsureSchema(ctx context.Context) error

	// Insert appends one event
	Insert(ctx context.Context, event observer.AnalysisEvent) error
}

// execer is the subset of *sql.DB the repository needs
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
