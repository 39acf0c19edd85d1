package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itsadi-24/smart-note/internal/analyzer"
	"github.com/itsadi-24/smart-note/internal/config"
	"github.com/itsadi-24/smart-note/internal/factory"
	"github.com/itsadi-24/smart-note/internal/observer"
)

type stubModel struct{ closed bool }

func (s *stubModel) Describe(ctx context.Context, prompt string, jpegData []byte) (string, error) {
	return "ok", nil
}
func (s *stubModel) Ping(ctx context.Context) error { return nil }
func (s *stubModel) Model() string                  { return "stub" }
func (s *stubModel) Close() error {
	s.closed = true
	return nil
}

type stubSinks struct {
	fail bool
	sink *memorySink
}

func (s *stubSinks) EnabledSinks() []factory.SinkType {
	return []factory.SinkType{factory.PostgresSink}
}

func (s *stubSinks) CreateSink(ctx context.Context, t factory.SinkType) (observer.EventSink, error) {
	if s.fail {
		return nil, errors.New("connection refused")
	}
	return s.sink, nil
}

type memorySink struct {
	mu     sync.Mutex
	events []observer.AnalysisEvent
	closed bool
}

func (m *memorySink) Name() string { return "memory" }
func (m *memorySink) Append(ctx context.Context, e observer.AnalysisEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}
func (m *memorySink) Close() error {
	m.closed = true
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		RequestTimeout:     5 * time.Second,
		AnalysisTimeout:    time.Second,
		HealthTimeout:      time.Second,
		MaxRequestBodySize: 1 << 20,
		MaxImagePixels:     1000,
		UploadJPEGQuality:  90,
		EventWorkers:       1,
		Variant: config.Variant{
			Name:           "basic",
			Model:          "stub",
			Prompt:         "Describe.",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

func newTestFactory(cfg *config.Config, model *stubModel, sinks factory.SinkFactory) *factory.ComponentFactory {
	return &factory.ComponentFactory{
		AnalyzerFactory: factory.NewAnalyzerFactory(cfg, func(ctx context.Context, cfg *config.Config) (factory.ClosableModel, error) {
			return model, nil
		}),
		SinkFactory: sinks,
	}
}

func TestNewContainer_WiresHandlerAndSinks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	model := &stubModel{}
	sink := &memorySink{}

	c, err := NewContainerWithFactory(context.Background(), cfg, newTestFactory(cfg, model, &stubSinks{sink: sink}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.Config() != cfg || c.Service().Variant() != "basic" {
		t.Error("Expected container to expose config and service")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected health 200, got %d", w.Code)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !model.closed || !sink.closed {
		t.Error("Expected model and sink to be closed")
	}
	if len(sink.events) != 1 || sink.events[0].EventType != observer.HealthChecked {
		t.Errorf("Expected the health event to reach the sink before Close returned, got %v", sink.events)
	}
}

func TestNewContainer_SkipsFailingSink(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	c, err := NewContainerWithFactory(context.Background(), cfg, newTestFactory(cfg, &stubModel{}, &stubSinks{fail: true}))
	if err != nil {
		t.Fatalf("Expected sink failure not to be fatal, got %v", err)
	}
	if len(c.sinks) != 0 {
		t.Errorf("Expected no sinks, got %d", len(c.sinks))
	}
	c.Close()
}

func TestNewContainer_ModelFailureIsFatal(t *testing.T) {
	cfg := testConfig()
	f := &factory.ComponentFactory{
		AnalyzerFactory: factory.NewAnalyzerFactory(cfg, func(ctx context.Context, cfg *config.Config) (factory.ClosableModel, error) {
			return nil, errors.New("invalid API key")
		}),
		SinkFactory: &stubSinks{},
	}

	if _, err := NewContainerWithFactory(context.Background(), cfg, f); err == nil {
		t.Error("Expected error when the model cannot be initialized")
	}
}

func TestContainer_EventPoolStats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	c, err := NewContainerWithFactory(context.Background(), cfg, newTestFactory(cfg, &stubModel{}, &stubSinks{sink: &memorySink{}}))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var stats analyzer.WorkerPoolStats = c.eventPool.GetStats()
	if stats.Workers != 1 {
		t.Errorf("Expected 1 event worker, got %d", stats.Workers)
	}
}
