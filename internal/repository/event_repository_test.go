package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/itsadi-24/smart-note/internal/observer"
)

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	return nil, f.err
}

func sampleEvent() observer.AnalysisEvent {
	return observer.AnalysisEvent{
		ID:           uuid.NewString(),
		RequestID:    "req-1",
		EventType:    observer.AnalysisFailed,
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
		Variant:      "detailed",
		Model:        "gemini-1.5-flash",
		Duration:     2500 * time.Millisecond,
		ErrorMessage: "Analysis failed: quota",
		Metadata:     map[string]interface{}{"width": 640},
	}
}

func TestInsert_BindsColumns(t *testing.T) {
	db := &fakeExecer{}
	repo := newEventRepository(db)
	e := sampleEvent()

	if err := repo.Insert(context.Background(), e); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(db.calls) != 1 {
		t.Fatalf("Expected 1 exec, got %d", len(db.calls))
	}

	args := db.calls[0].args
	if len(args) != 10 {
		t.Fatalf("Expected 10 bound args, got %d", len(args))
	}
	if args[2] != "analysis_failed" {
		t.Errorf("Expected event type column, got %v", args[2])
	}
	if ts := args[3].(time.Time); ts.Location() != time.UTC || ts.Hour() != 11 {
		t.Errorf("Expected timestamp normalized to UTC, got %v", ts)
	}
	if args[6] != int64(2500) {
		t.Errorf("Expected duration in ms, got %v", args[6])
	}
	if msg := args[8].(sql.NullString); !msg.Valid || msg.String != "Analysis failed: quota" {
		t.Errorf("Unexpected error_message arg %v", msg)
	}

	meta := args[9].(sql.NullString)
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(meta.String), &decoded); err != nil || decoded["width"] != float64(640) {
		t.Errorf("Unexpected metadata arg %q", meta.String)
	}
}

func TestInsert_NullsForEmptyOptionalFields(t *testing.T) {
	db := &fakeExecer{}
	e := sampleEvent()
	e.ErrorMessage = ""
	e.Metadata = nil

	if err := newEventRepository(db).Insert(context.Background(), e); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	args := db.calls[0].args
	if args[8].(sql.NullString).Valid || args[9].(sql.NullString).Valid {
		t.Errorf("Expected NULL error_message and metadata, got %v %v", args[8], args[9])
	}
}

func TestInsert_RejectsIncompleteEvent(t *testing.T) {
	db := &fakeExecer{}
	err := newEventRepository(db).Insert(context.Background(), observer.AnalysisEvent{EventType: observer.ImageDecoded})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Expected ErrInvalidEvent, got %v", err)
	}
	if len(db.calls) != 0 {
		t.Error("Expected no database call")
	}
}

func TestInsert_WrapsDriverError(t *testing.T) {
	db := &fakeExecer{err: errors.New("connection reset")}
	err := newEventRepository(db).Append(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "EventRepository.Insert: connection reset") {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeExecer{}
	repo := newEventRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(db.calls[0].query, "CREATE TABLE IF NOT EXISTS analysis_events") {
		t.Errorf("Unexpected schema statement %q", db.calls[0].query)
	}
	if repo.Name() != "postgres" {
		t.Errorf("Unexpected sink name %q", repo.Name())
	}
	if err := repo.Close(); err != nil {
		t.Errorf("Expected Close without owned db to succeed, got %v", err)
	}
}

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestPrepareRepository(t *testing.T) {
	db := &fakeExecer{}
	repo, err := prepareRepository(context.Background(), newEventRepository(db))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if repo.Name() != "postgres" || len(db.calls) != 1 {
		t.Errorf("Expected schema to be created once, got %d calls", len(db.calls))
	}
}

func TestPrepareRepository_SchemaFailureCloses(t *testing.T) {
	closer := &closeRecorder{}
	failing := newEventRepository(&fakeExecer{err: errors.New("permission denied for schema public")})
	failing.closer = closer

	if _, err := prepareRepository(context.Background(), failing); err == nil {
		t.Fatal("Expected schema error")
	}
	if !closer.closed {
		t.Error("Expected the repository to be closed after a schema failure")
	}
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresEventRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := OpenEventRepository(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenEventRepository failed: %v", err)
	}
	defer repo.Close()

	e := sampleEvent()
	if err := repo.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var eventType string
	var durationMS int64
	db := repo.(*PostgresEventRepository).db.(*sql.DB)
	if err := db.QueryRowContext(ctx,
		`SELECT event_type, duration_ms FROM analysis_events WHERE id = $1`, e.ID,
	).Scan(&eventType, &durationMS); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if eventType != "analysis_failed" || durationMS != 2500 {
		t.Errorf("Unexpected row: %s %d", eventType, durationMS)
	}
}
