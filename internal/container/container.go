package container

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/itsadi-24/smart-note/internal/analyzer"
	"github.com/itsadi-24/smart-note/internal/config"
	"github.com/itsadi-24/smart-note/internal/factory"
	"github.com/itsadi-24/smart-note/internal/imagedata"
	"github.com/itsadi-24/smart-note/internal/logger"
	"github.com/itsadi-24/smart-note/internal/observer"
	"github.com/itsadi-24/smart-note/internal/service"
	"github.com/itsadi-24/smart-note/internal/transport"
)

// eventQueueSize bounds pending sink writes before events are dropped
const eventQueueSize = 256

// Container holds all application dependencies
type Container struct {
	config               *config.Config
	imageAnalyzer        analyzer.ImageAnalyzer
	modelCloser          io.Closer
	eventPool            *analyzer.WorkerPool
	sinks                []*observer.SinkObserver
	imageAnalysisService service.ImageAnalysisService
	handler              http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	return NewContainerWithFactory(ctx, cfg, factory.NewComponentFactory(cfg))
}

// NewContainerWithFactory builds the dependency graph from the given factories.
// The model is dialed once here and shared by every request. A sink that
// fails to connect is logged and skipped.
func NewContainerWithFactory(ctx context.Context, cfg *config.Config, f *factory.ComponentFactory) (*Container, error) {
	imageAnalyzer, modelCloser, err := f.AnalyzerFactory.CreateAnalyzer(ctx)
	if err != nil {
		return nil, err
	}

	eventPool := analyzer.NewWorkerPoolWithQueue(cfg.EventWorkers, eventQueueSize)
	eventPool.Start()

	metrics := observer.NewMetricsObserver()
	publisher := observer.NewEventPublisher(logger.Logger)
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))
	publisher.Subscribe(metrics)

	var sinks []*observer.SinkObserver
	for _, sinkType := range f.SinkFactory.EnabledSinks() {
		sink, err := f.SinkFactory.CreateSink(ctx, sinkType)
		if err != nil {
			logger.WithError(err).WithField("sink", sinkType).Error("Event sink unavailable, continuing without it")
			continue
		}
		obs := observer.NewSinkObserver(sink, eventPool, logger.Logger)
		publisher.Subscribe(obs)
		sinks = append(sinks, obs)
		logger.WithField("sink", sink.Name()).Info("Event sink enabled")
	}

	imageAnalysisService, err := service.NewImageAnalysisService(service.Dependencies{
		Decoder:       imagedata.NewDecoder(cfg.MaxImagePixels),
		Analyzer:      imageAnalyzer,
		Events:        publisher,
		Metrics:       metrics,
		Pool:          eventPool,
		Variant:       cfg.Variant.Name,
		HealthTimeout: cfg.HealthTimeout,
	})
	if err != nil {
		eventPool.Close()
		modelCloser.Close()
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"variant": cfg.Variant.Name,
		"model":   cfg.Variant.Model,
		"origins": cfg.Variant.AllowedOrigins,
	}).Info("Gemini client initialized")

	return &Container{
		config:               cfg,
		imageAnalyzer:        imageAnalyzer,
		modelCloser:          modelCloser,
		eventPool:            eventPool,
		sinks:                sinks,
		imageAnalysisService: imageAnalysisService,
		handler:              transport.NewHandler(imageAnalysisService, cfg),
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the analysis service
func (c *Container) Service() service.ImageAnalysisService {
	return c.imageAnalysisService
}

// Close drains pending sink writes, then releases sinks and the model
// client. Call it after the HTTP server has stopped.
func (c *Container) Close() error {
	c.eventPool.Close()

	var errs []error
	for _, s := range c.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.modelCloser.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
