package factory

import (
	"context"
	"fmt"
	"io"

	"github.com/itsadi-24/smart-note/internal/analyzer"
	"github.com/itsadi-24/smart-note/internal/config"
	"github.com/itsadi-24/smart-note/internal/gemini"
	"github.com/itsadi-24/smart-note/internal/observer"
	"github.com/itsadi-24/smart-note/internal/repository"
	"github.com/itsadi-24/smart-note/internal/storage"
)

// SinkType represents the supported event sink backends
type SinkType string

const (
	// PostgresSink appends events to the analysis_events table
	PostgresSink SinkType = "postgres"
	// AzureBlobSink appends events to daily JSON-lines blobs
	AzureBlobSink SinkType = "azure"
)

// ClosableModel is a VisionModel holding a connection
type ClosableModel interface {
	analyzer.VisionModel
	io.Closer
}

// ModelDialer opens the vision model described by cfg
type ModelDialer func(ctx context.Context, cfg *config.Config) (ClosableModel, error)

// DialGemini is the production ModelDialer
func DialGemini(ctx context.Context, cfg *config.Config) (ClosableModel, error) {
	client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.Variant.Model, cfg.GeminiMaxAttempts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// AnalyzerFactory creates the analyzer for the active variant
type AnalyzerFactory interface {
	CreateAnalyzer(ctx context.Context) (analyzer.ImageAnalyzer, io.Closer, error)
}

// SinkFactory creates event sinks
type SinkFactory interface {
	EnabledSinks() []SinkType
	CreateSink(ctx context.Context, sinkType SinkType) (observer.EventSink, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct {
	cfg  *config.Config
	dial ModelDialer
}

// NewAnalyzerFactory creates a new analyzer factory. A nil dial uses DialGemini.
func NewAnalyzerFactory(cfg *config.Config, dial ModelDialer) AnalyzerFactory {
	if dial == nil {
		dial = DialGemini
	}
	return &analyzerFactory{cfg: cfg, dial: dial}
}

// CreateAnalyzer dials the model once; the returned closer releases it
func (f *analyzerFactory) CreateAnalyzer(ctx context.Context) (analyzer.ImageAnalyzer, io.Closer, error) {
	model, err := f.dial(ctx, f.cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize model %s: %w", f.cfg.Variant.Model, err)
	}

	opts := analyzer.DefaultOptions().
		WithPrompt(f.cfg.Variant.Prompt).
		WithTimeout(f.cfg.AnalysisTimeout).
		WithJPEGQuality(f.cfg.UploadJPEGQuality)

	a, err := analyzer.NewImageAnalyzer(model, opts)
	if err != nil {
		model.Close()
		return nil, nil, err
	}
	return a, model, nil
}

// sinkFactory implements SinkFactory
type sinkFactory struct {
	cfg *config.Config
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config) SinkFactory {
	return &sinkFactory{cfg: cfg}
}

// EnabledSinks lists the sinks the configuration turns on
func (f *sinkFactory) EnabledSinks() []SinkType {
	var out []SinkType
	if f.cfg.DatabaseURL != "" {
		out = append(out, PostgresSink)
	}
	if f.cfg.AzureAccount != "" && f.cfg.AzureKey != "" {
		out = append(out, AzureBlobSink)
	}
	return out
}

// CreateSink connects the sink based on the specified type
func (f *sinkFactory) CreateSink(ctx context.Context, sinkType SinkType) (observer.EventSink, error) {
	switch sinkType {
	case PostgresSink:
		return repository.OpenEventRepository(ctx, f.cfg.DatabaseURL)
	case AzureBlobSink:
		return storage.NewAzureEventLog(f.cfg.AzureAccount, f.cfg.AzureKey, f.cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", sinkType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory AnalyzerFactory
	SinkFactory     SinkFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory: NewAnalyzerFactory(cfg, nil),
		SinkFactory:     NewSinkFactory(cfg),
	}
}
