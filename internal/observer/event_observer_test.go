package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/itsadi-24/smart-note/internal/analyzer"
)

func newBufferLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l, &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggingObserver_MessagesAndFields(t *testing.T) {
	l, buf := newBufferLogger()
	obs := NewLoggingObserver(l)

	obs.OnEvent(context.Background(), AnalysisEvent{EventType: RequestReceived, RequestID: "r1", Variant: "detailed"})
	obs.OnEvent(context.Background(), AnalysisEvent{EventType: ModelResponded, RequestID: "r1", Duration: 1500 * time.Millisecond, Success: true})
	obs.OnEvent(context.Background(), AnalysisEvent{EventType: AnalysisFailed, RequestID: "r1", ErrorMessage: "Analysis failed: boom"})

	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("Expected 3 log lines, got %d", len(lines))
	}
	if lines[0]["msg"] != "Receiving analysis request" || lines[0]["variant"] != "detailed" {
		t.Errorf("Unexpected first line: %v", lines[0])
	}
	if lines[1]["duration_ms"] != float64(1500) {
		t.Errorf("Expected duration_ms 1500, got %v", lines[1]["duration_ms"])
	}
	if lines[2]["level"] != "error" || lines[2]["error"] != "Analysis failed: boom" {
		t.Errorf("Unexpected failure line: %v", lines[2])
	}
}

func TestMetricsObserver_Counts(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()

	events := []AnalysisEvent{
		{EventType: RequestReceived},
		{EventType: RequestReceived},
		{EventType: RequestReceived},
		{EventType: ImageRejected},
		{EventType: ModelResponded, Duration: 100 * time.Millisecond},
		{EventType: ModelResponded, Duration: 300 * time.Millisecond},
		{EventType: AnalysisFailed},
		{EventType: HealthChecked, Success: true},
		{EventType: HealthChecked, Success: false},
	}
	for _, e := range events {
		m.OnEvent(ctx, e)
	}

	got := m.GetMetrics()
	if got.TotalRequests != 3 || got.RejectedImages != 1 || got.Successful != 2 || got.SoftFailures != 1 {
		t.Errorf("Unexpected counters: %+v", got)
	}
	if got.HealthChecks != 2 || got.FailedHealth != 1 {
		t.Errorf("Unexpected health counters: %+v", got)
	}
	if got.AvgModelLatencyMS != 200 {
		t.Errorf("Expected avg latency 200ms, got %v", got.AvgModelLatencyMS)
	}
}

type recordingObserver struct {
	name string
	mu   sync.Mutex
	seen []EventType
}

func (r *recordingObserver) OnEvent(ctx context.Context, e AnalysisEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, e.EventType)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, e AnalysisEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                      { return "panicky" }

func TestEventPublisher_OrderAndPanicIsolation(t *testing.T) {
	l, buf := newBufferLogger()
	p := NewEventPublisher(l)
	rec := &recordingObserver{name: "rec"}
	p.Subscribe(panickingObserver{})
	p.Subscribe(rec)

	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: RequestReceived})
	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: ImageDecoded})

	if len(rec.seen) != 2 || rec.seen[0] != RequestReceived || rec.seen[1] != ImageDecoded {
		t.Errorf("Expected ordered delivery, got %v", rec.seen)
	}
	if !strings.Contains(buf.String(), "Observer panicked while handling event") {
		t.Error("Expected panic to be logged")
	}

	p.Unsubscribe(rec)
	p.NotifyObservers(context.Background(), AnalysisEvent{EventType: ModelInvoked})
	if len(rec.seen) != 2 {
		t.Errorf("Expected no delivery after unsubscribe, got %v", rec.seen)
	}
}

type fakeSink struct {
	mu     sync.Mutex
	events []AnalysisEvent
	err    error
	closed bool
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Append(ctx context.Context, e AnalysisEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func TestSinkObserver_AppendsAsync(t *testing.T) {
	pool := analyzer.NewWorkerPoolWithQueue(1, 8)
	pool.Start()
	defer pool.Close()

	l, _ := newBufferLogger()
	sink := &fakeSink{}
	obs := NewSinkObserver(sink, pool, l)

	ctx, cancel := context.WithCancel(context.Background())
	obs.OnEvent(ctx, AnalysisEvent{EventType: RequestReceived, RequestID: "r1"})
	cancel() // request finished before the sink ran
	pool.Close()

	if len(sink.events) != 1 || sink.events[0].RequestID != "r1" {
		t.Errorf("Expected event to be appended despite cancelled request, got %v", sink.events)
	}
	if obs.GetObserverName() != "sink_observer:fake" {
		t.Errorf("Unexpected observer name %q", obs.GetObserverName())
	}
	if err := obs.Close(); err != nil || !sink.closed {
		t.Error("Expected Close to close the sink")
	}
}

func TestSinkObserver_LogsAppendErrors(t *testing.T) {
	pool := analyzer.NewWorkerPoolWithQueue(1, 8)
	pool.Start()
	defer pool.Close()

	l, buf := newBufferLogger()
	obs := NewSinkObserver(&fakeSink{err: errors.New("db down")}, pool, l)

	obs.OnEvent(context.Background(), AnalysisEvent{EventType: ModelResponded})
	pool.Close()

	if obs.FailedAppends() != 1 {
		t.Errorf("Expected 1 failed append, got %d", obs.FailedAppends())
	}
	if !strings.Contains(buf.String(), "Failed to append event") {
		t.Errorf("Expected warning to be logged, got %q", buf.String())
	}
}

func TestSinkObserver_DropsWhenPoolClosed(t *testing.T) {
	pool := analyzer.NewWorkerPoolWithQueue(1, 8)
	pool.Start()
	pool.Close()

	l, buf := newBufferLogger()
	sink := &fakeSink{}
	NewSinkObserver(sink, pool, l).OnEvent(context.Background(), AnalysisEvent{EventType: RequestReceived})

	if len(sink.events) != 0 {
		t.Error("Expected event to be dropped")
	}
	if !strings.Contains(buf.String(), "Event queue full, dropping event") {
		t.Errorf("Expected drop to be logged, got %q", buf.String())
	}
}
