package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/itsadi-24/smart-note/internal/observer"
)

const createEventsTable = `
CREATE TABLE IF NOT EXISTS analysis_events (
	id            UUID PRIMARY KEY,
	request_id    TEXT NOT NULL DEFAULT '',
	event_type    TEXT NOT NULL,
	occurred_at   TIMESTAMPTZ NOT NULL,
	variant       TEXT NOT NULL DEFAULT '',
	model         TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	success       BOOLEAN NOT NULL,
	error_message TEXT,
	metadata      JSONB
);
CREATE INDEX IF NOT EXISTS analysis_events_request_id_idx ON analysis_events (request_id);
CREATE INDEX IF NOT EXISTS analysis_events_occurred_at_idx ON analysis_events (occurred_at);`

const insertEvent = `INSERT INTO analysis_events
	(id, request_id, event_type, occurred_at, variant, model, duration_ms, success, error_message, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// NewDB opens a pgx-backed connection pool and verifies it with a ping
func NewDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// event writes are small and infrequent
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrRepositoryUnavailable, err)
	}
	return db, nil
}

// OpenEventRepository connects to dsn and makes sure the events table exists
func OpenEventRepository(ctx context.Context, dsn string) (EventRepository, error) {
	db, err := NewDB(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return prepareRepository(ctx, NewPostgresEventRepository(db))
}

// prepareRepository creates the schema, closing repo when that fails
func prepareRepository(ctx context.Context, repo EventRepository) (EventRepository, error) {
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// PostgresEventRepository appends events to the analysis_events table. It
// also serves as an observer.EventSink.
type PostgresEventRepository struct {
	db     execer
	closer io.Closer
}

// NewPostgresEventRepository wraps an open database. The repository takes
// ownership: Close closes db.
func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db, closer: db}
}

func newEventRepository(db execer) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createEventsTable); err != nil {
		return fmt.Errorf("EventRepository.EnsureSchema: %w", err)
	}
	return nil
}

func (r *PostgresEventRepository) Insert(ctx context.Context, event observer.AnalysisEvent) error {
	if event.ID == "" || event.EventType == "" {
		return fmt.Errorf("EventRepository.Insert: %w", ErrInvalidEvent)
	}

	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("EventRepository.Insert: encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, insertEvent,
		event.ID,
		event.RequestID,
		string(event.EventType),
		event.Timestamp.UTC(),
		event.Variant,
		event.Model,
		event.Duration.Milliseconds(),
		event.Success,
		sql.NullString{String: event.ErrorMessage, Valid: event.ErrorMessage != ""},
		metadata,
	)
	if err != nil {
		return fmt.Errorf("EventRepository.Insert: %w", err)
	}
	return nil
}

// Name implements observer.EventSink
func (r *PostgresEventRepository) Name() string { return "postgres" }

// Append implements observer.EventSink
func (r *PostgresEventRepository) Append(ctx context.Context, event observer.AnalysisEvent) error {
	return r.Insert(ctx, event)
}

// Close implements observer.EventSink
func (r *PostgresEventRepository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
