package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent is one lifecycle transition of a request. It never carries
// image bytes.
type AnalysisEvent struct {
	ID           string                 `json:"id"`
	RequestID    string                 `json:"request_id"`
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	Variant      string                 `json:"variant"`
	Model        string                 `json:"model"`
	Duration     time.Duration          `json:"duration_ns"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// RequestReceived when an analysis request enters the service
	RequestReceived EventType = "request_received"
	// ImageDecoded when the payload became a bitmap
	ImageDecoded EventType = "image_decoded"
	// ImageRejected when the payload could not be decoded
	ImageRejected EventType = "image_rejected"
	// ModelInvoked right before the model call
	ModelInvoked EventType = "model_invoked"
	// ModelResponded when the model returned text
	ModelResponded EventType = "model_responded"
	// AnalysisFailed when the model call failed after decoding
	AnalysisFailed EventType = "analysis_failed"
	// HealthChecked after every liveness probe, success or not
	HealthChecked EventType = "health_checked"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver writes one structured line per lifecycle transition
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"request_id": event.RequestID,
		"variant":    event.Variant,
		"model":      event.Model,
		"success":    event.Success,
	}
	if event.Duration > 0 {
		fields["duration_ms"] = event.Duration.Milliseconds()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case RequestReceived:
		entry.Info("Receiving analysis request")
	case ImageDecoded:
		entry.Info("Image successfully decoded and converted")
	case ImageRejected:
		entry.Warn("Error processing image data")
	case ModelInvoked:
		entry.Info("Sending request to Gemini")
	case ModelResponded:
		entry.Info("Received response from Gemini")
	case AnalysisFailed:
		entry.Error("Error in analysis")
	case HealthChecked:
		if event.Success {
			entry.Info("Health check passed")
		} else {
			entry.Error("Health check failed")
		}
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of the counters kept by MetricsObserver
type Metrics struct {
	TotalRequests     int64   `json:"total_requests"`
	Successful        int64   `json:"successful"`
	SoftFailures      int64   `json:"soft_failures"`
	RejectedImages    int64   `json:"rejected_images"`
	HealthChecks      int64   `json:"health_checks"`
	FailedHealth      int64   `json:"failed_health_checks"`
	AvgModelLatencyMS float64 `json:"avg_model_latency_ms"`
	StartedAt         string  `json:"started_at"`
}

// MetricsObserver collects in-memory counters from analysis events
type MetricsObserver struct {
	mu                sync.RWMutex
	startedAt         time.Time
	totalRequests     int64
	successful        int64
	softFailures      int64
	rejected          int64
	healthChecks      int64
	failedHealth      int64
	totalModelLatency time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{startedAt: time.Now().UTC()}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case RequestReceived:
		o.totalRequests++
	case ImageRejected:
		o.rejected++
	case ModelResponded:
		o.successful++
		o.totalModelLatency += event.Duration
	case AnalysisFailed:
		o.softFailures++
	case HealthChecked:
		o.healthChecks++
		if !event.Success {
			o.failedHealth++
		}
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var avg float64
	if o.successful > 0 {
		avg = float64(o.totalModelLatency.Milliseconds()) / float64(o.successful)
	}

	return Metrics{
		TotalRequests:     o.totalRequests,
		Successful:        o.successful,
		SoftFailures:      o.softFailures,
		RejectedImages:    o.rejected,
		HealthChecks:      o.healthChecks,
		FailedHealth:      o.failedHealth,
		AvgModelLatencyMS: avg,
		StartedAt:         o.startedAt.Format(time.RFC3339),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *logrus.Logger
}

// NewEventPublisher creates a new event publisher. Panics inside observers
// are reported through logger.
func NewEventPublisher(logger *logrus.Logger) *EventPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventPublisher{
		observers: make([]Observer, 0),
		logger:    logger,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer in subscription
// order on the caller's goroutine, so log lines for one request stay in
// sequence. Observers that do slow I/O wrap themselves in a SinkObserver.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		p.notify(ctx, obs, event)
	}
}

func (p *EventPublisher) notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the request
			p.logger.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
